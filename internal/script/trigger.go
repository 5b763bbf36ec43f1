// Package script описывает контракт скриптового движка, которым пользуется
// хранилище триггеров: компиляция текста в Trigger и его дублирование.
// Исполнение скриптов сюда не входит.
package script

import (
	"fmt"
)

// Engine компилирует исходный текст скрипта в Trigger
type Engine interface {
	Compile(text string) (*Trigger, error)
}

// EngineFunc адаптер функции к интерфейсу Engine
type EngineFunc func(text string) (*Trigger, error)

// Compile вызывает f(text)
func (f EngineFunc) Compile(text string) (*Trigger, error) {
	return f(text)
}

// Trigger скомпилированный скрипт. Хранилище видит только текст и Duplicate.
type Trigger struct {
	script string
	tokens []Token
}

// NewTrigger создаёт триггер из уже разобранных токенов
func NewTrigger(text string, tokens []Token) *Trigger {
	return &Trigger{script: text, tokens: tokens}
}

// Script возвращает исходный текст скрипта
func (t *Trigger) Script() string {
	return t.script
}

// Tokens возвращает копию скомпилированного потока токенов
func (t *Trigger) Tokens() []Token {
	out := make([]Token, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Duplicate возвращает независимую копию триггера
func (t *Trigger) Duplicate() *Trigger {
	tokens := make([]Token, len(t.tokens))
	copy(tokens, t.tokens)
	return &Trigger{script: t.script, tokens: tokens}
}

// CompileError лексическая или синтаксическая ошибка скрипта
type CompileError struct {
	Line int
	Col  int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %d:%d: %s", e.Line, e.Col, e.Msg)
}
