package world

import (
	"fmt"
)

// ChunkShift сдвиг, которым координата блока переводится в координату чанка.
// 4 => чанк 16x16 по X/Z, как и в остальном мире.
const ChunkShift = 4

// ChunkSize размер чанка в блоках
const ChunkSize = 1 << ChunkShift

// Location координата блока в конкретном мире.
// Значимый тип: сравнивается по всем четырём полям и годится как ключ map.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

// ChunkKey ключ чанка, к которому относится координата
type ChunkKey struct {
	World string
	X     int
	Z     int
}

// NewLocation создаёт координату
func NewLocation(world string, x, y, z int) Location {
	return Location{World: world, X: x, Y: y, Z: z}
}

// Chunk возвращает ключ чанка. Сдвиг арифметический, поэтому
// отрицательные координаты округляются вниз (-1 -> чанк -1).
func (l Location) Chunk() ChunkKey {
	return ChunkKey{World: l.World, X: l.X >> ChunkShift, Z: l.Z >> ChunkShift}
}

// String возвращает координату в виде world@x,y,z
func (l Location) String() string {
	return fmt.Sprintf("%s@%d,%d,%d", l.World, l.X, l.Y, l.Z)
}

// Contains проверяет, что координата лежит в чанке
func (c ChunkKey) Contains(l Location) bool {
	return l.Chunk() == c
}

// String возвращает ключ в виде world[cx,cz]
func (c ChunkKey) String() string {
	return fmt.Sprintf("%s[%d,%d]", c.World, c.X, c.Z)
}
