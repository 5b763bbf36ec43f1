package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/middleware"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/trigger"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer административный REST API хранилища триггеров
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	store      *trigger.Store
	named      *trigger.NamedStore
	engine     script.Engine
	logger     *logging.Logger
	port       string
	metrics    *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port       string              // порт для запуска сервера, например ":8088"
	Store      *trigger.Store      // триггеры по координатам
	Named      *trigger.NamedStore // именованные триггеры (может быть nil)
	Engine     script.Engine       // компиляция тела PUT
	Logger     *logging.Logger
	Registerer prometheus.Registerer // nil = prometheus.DefaultRegisterer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}
	if config.Engine == nil {
		config.Engine = script.NewLexer()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("triggers_admin"))

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("triggers_admin", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:  router,
		store:   config.Store,
		named:   config.Named,
		engine:  config.Engine,
		logger:  config.Logger,
		port:    config.Port,
		metrics: NewServerMetrics(),
	}

	server.setupRoutes()
	return server
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	triggers := api.Group("/triggers")
	{
		triggers.GET("/:world/:x/:y/:z", rs.handleGetTrigger)
		triggers.PUT("/:world/:x/:y/:z", rs.handlePutTrigger)
		triggers.DELETE("/:world/:x/:y/:z", rs.handleDeleteTrigger)
	}

	api.GET("/chunks/:world/:cx/:cz", rs.handleChunk)
	api.POST("/reload", rs.handleReload)
	api.POST("/save", rs.handleSave)
	api.GET("/export", rs.handleExport)
	api.POST("/import", rs.handleImport)

	clipboard := api.Group("/clipboard/:actor")
	{
		clipboard.POST("/cut", rs.handleBegin(trigger.ModeCut))
		clipboard.POST("/copy", rs.handleBegin(trigger.ModeCopy))
		clipboard.POST("/paste", rs.handlePaste)
		clipboard.DELETE("", rs.handleInvalidate)
	}

	api.GET("/named/*name", rs.handleNamed)

	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LocationRequest тело запросов буфера обмена
type LocationRequest struct {
	World string `json:"world" binding:"required"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

func (r LocationRequest) location() world.Location {
	return world.NewLocation(r.World, r.X, r.Y, r.Z)
}

// TriggerView триггер в ответе API
type TriggerView struct {
	Location string `json:"location"`
	Chunk    string `json:"chunk"`
	Slot     *int   `json:"slot,omitempty"`
	Script   string `json:"script"`
}

// FailureView одна ошибка пакетной операции
type FailureView struct {
	Op       string `json:"op"`
	File     string `json:"file,omitempty"`
	Location string `json:"location,omitempty"`
	Slot     int    `json:"slot"`
	Error    string `json:"error"`
}

func failureViews(failures []trigger.Failure) []FailureView {
	out := make([]FailureView, 0, len(failures))
	for _, f := range failures {
		v := FailureView{Op: f.Op, File: f.Name, Slot: f.Slot, Error: f.Err.Error()}
		if f.Location != nil {
			v.Location = f.Location.String()
		}
		out = append(out, v)
	}
	return out
}

func parseLocation(c *gin.Context) (world.Location, bool) {
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	z, errZ := strconv.Atoi(c.Param("z"))
	if errX != nil || errY != nil || errZ != nil || c.Param("world") == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Координаты должны быть целыми числами",
		})
		return world.Location{}, false
	}
	return world.NewLocation(c.Param("world"), x, y, z), true
}

func parseActor(c *gin.Context) (uuid.UUID, bool) {
	actor, err := uuid.Parse(c.Param("actor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный идентификатор актёра",
		})
		return uuid.Nil, false
	}
	return actor, true
}

func (rs *RestServer) view(loc world.Location, t *script.Trigger) TriggerView {
	v := TriggerView{
		Location: loc.String(),
		Chunk:    loc.Chunk().String(),
		Script:   t.Script(),
	}
	if slot, ok := rs.store.SlotOf(loc); ok {
		v.Slot = &slot
	}
	return v
}

func (rs *RestServer) handleGetTrigger(c *gin.Context) {
	loc, ok := parseLocation(c)
	if !ok {
		return
	}
	t, ok := rs.store.Get(loc)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Триггер не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Триггер найден", Data: rs.view(loc, t)})
}

func (rs *RestServer) handlePutTrigger(c *gin.Context) {
	loc, ok := parseLocation(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Не удалось прочитать тело запроса"})
		return
	}

	t, err := rs.engine.Compile(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	rs.store.Set(loc, t)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Триггер установлен", Data: rs.view(loc, t)})
}

func (rs *RestServer) handleDeleteTrigger(c *gin.Context) {
	loc, ok := parseLocation(c)
	if !ok {
		return
	}
	t, ok := rs.store.Remove(loc)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Триггер не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Триггер удалён",
		Data:    TriggerView{Location: loc.String(), Chunk: loc.Chunk().String(), Script: t.Script()},
	})
}

func (rs *RestServer) handleChunk(c *gin.Context) {
	cx, errX := strconv.Atoi(c.Param("cx"))
	cz, errZ := strconv.Atoi(c.Param("cz"))
	if errX != nil || errZ != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Координаты чанка должны быть целыми числами"})
		return
	}

	key := world.ChunkKey{World: c.Param("world"), X: cx, Z: cz}
	bindings := rs.store.TriggersInChunk(key)
	views := make([]TriggerView, 0, len(bindings))
	for _, b := range bindings {
		views = append(views, rs.view(b.Location, b.Trigger))
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: key.String(), Data: views})
}

func (rs *RestServer) handleReload(c *gin.Context) {
	report, err := rs.store.Reload(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		var cfgErr *trigger.ConfigurationError
		if errors.As(err, &cfgErr) {
			status = http.StatusConflict
		}
		c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: len(report.Failures) == 0,
		Message: "Триггеры перезагружены",
		Data: gin.H{
			"scanned":     report.Scanned,
			"loaded":      report.Loaded,
			"ledger_size": report.LedgerSize,
			"failures":    failureViews(report.Failures),
			"duration_ms": report.Duration.Milliseconds(),
		},
	})
}

func (rs *RestServer) handleSave(c *gin.Context) {
	report := rs.store.SaveAll(c.Request.Context())
	data := gin.H{
		"attempted":   report.Attempted,
		"saved":       report.Saved,
		"skipped":     report.Skipped,
		"evicted":     report.Evicted,
		"failures":    failureViews(report.Failures),
		"duration_ms": report.Duration.Milliseconds(),
	}
	if rs.named != nil {
		namedReport := rs.named.SaveAll(c.Request.Context())
		data["named_saved"] = namedReport.Saved
		data["named_failures"] = failureViews(namedReport.Failures)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: len(report.Failures) == 0,
		Message: "Триггеры сохранены",
		Data:    data,
	})
}

// handleExport отдаёт zstd-архив папки триггеров
func (rs *RestServer) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	n, err := rs.store.Export(c.Request.Context(), &buf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	filename := fmt.Sprintf("%s-%s.jsonl.zst", rs.store.Folder(), time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Trigger-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, "application/zstd", buf.Bytes())
}

// handleImport принимает архив из тела запроса и перезагружает хранилище
func (rs *RestServer) handleImport(c *gin.Context) {
	report, err := rs.store.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		status := http.StatusBadRequest
		var cfgErr *trigger.ConfigurationError
		if errors.As(err, &cfgErr) {
			status = http.StatusConflict
		}
		c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: len(report.Failures) == 0,
		Message: "Архив импортирован",
		Data: gin.H{
			"scanned":  report.Scanned,
			"loaded":   report.Loaded,
			"failures": failureViews(report.Failures),
		},
	})
}

func (rs *RestServer) handleBegin(mode trigger.ClipboardMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c)
		if !ok {
			return
		}
		var req LocationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
			return
		}

		loc := req.location()
		var started bool
		if mode == trigger.ModeCut {
			started = rs.store.BeginCut(actor, loc)
		} else {
			started = rs.store.BeginCopy(actor, loc)
		}
		if !started {
			c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "На этой координате нет триггера"})
			return
		}
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: mode.String() + " " + loc.String()})
	}
}

func (rs *RestServer) handlePaste(c *gin.Context) {
	actor, ok := parseActor(c)
	if !ok {
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	outcome := rs.store.Paste(actor, req.location())
	status := http.StatusOK
	switch outcome {
	case trigger.PasteNothingPending:
		status = http.StatusConflict
	case trigger.PasteSourceLost:
		status = http.StatusGone
	}
	c.JSON(status, GenericResponse{
		Success: outcome == trigger.Pasted,
		Message: outcome.String(),
	})
}

func (rs *RestServer) handleInvalidate(c *gin.Context) {
	actor, ok := parseActor(c)
	if !ok {
		return
	}
	rs.store.InvalidateClipboard(actor)
	c.Status(http.StatusNoContent)
}

func (rs *RestServer) handleNamed(c *gin.Context) {
	if rs.named == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Именованные триггеры отключены"})
		return
	}

	name := strings.Trim(c.Param("name"), "/")
	if name == "" {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Именованные триггеры", Data: rs.named.Names()})
		return
	}

	name = trigger.PathToName(name)
	t, ok := rs.named.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Триггер не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: name,
		Data:    gin.H{"name": name, "script": t.Script()},
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"time":        time.Now().Unix(),
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   memoryMB,
		"cpu_percent": cpuPercent,
		"triggers":    rs.store.Len(),
		"ledger":      rs.store.LedgerLen(),
		"memory":      rs.metrics.GetDetailedMemoryStats(),
	})
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rs.logger.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logger.Info("✅ REST API сервер запущен на http://localhost%s", rs.port)
	rs.logger.Info("📋 Доступные эндпоинты:")
	rs.logger.Info("   GET/PUT/DELETE /api/triggers/:world/:x/:y/:z")
	rs.logger.Info("   GET  /api/chunks/:world/:cx/:cz")
	rs.logger.Info("   POST /api/reload, POST /api/save")
	rs.logger.Info("   GET  /api/export, POST /api/import")
	rs.logger.Info("   POST /api/clipboard/:actor/{cut,copy,paste}")
	rs.logger.Info("   GET  /api/named/*name, GET /health, GET /metrics")
	return nil
}

// Stop останавливает HTTP сервер, дожидаясь текущих запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	rs.logger.Info("🛑 Остановка REST API сервера...")
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return rs.httpServer.Shutdown(ctx)
}
