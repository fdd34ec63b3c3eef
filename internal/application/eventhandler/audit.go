// Package eventhandler содержит обработчики доменных событий реестра.
// Обработчики не влияют на результат записи: они только наблюдают
// и оставляют след в журнале.
package eventhandler

import (
	"sync"

	"github.com/alem-hub/course-registry/internal/domain/shared"
	"github.com/alem-hub/course-registry/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT HANDLER
// Пишет каждое доменное событие в структурированный журнал и ведёт счётчики
// для итоговой сводки сессии.
// ═══════════════════════════════════════════════════════════════════════════

// AuditHandler журналирует доменные события.
type AuditHandler struct {
	logger *logger.Logger

	mu     sync.Mutex
	counts map[shared.EventType]int
	// overCapacity - сколько VIP-записей превысили вместимость.
	overCapacity int
}

// NewAuditHandler создаёт обработчик аудита.
func NewAuditHandler(log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditHandler{
		logger: log.With(logger.Component("audit")),
		counts: make(map[shared.EventType]int),
	}
}

// Register подписывает обработчик на все события шины.
func (h *AuditHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle обрабатывает одно событие. Ошибок не возвращает.
func (h *AuditHandler) Handle(event shared.Event) error {
	h.mu.Lock()
	h.counts[event.EventType()]++
	if e, ok := event.(shared.StudentEnrolledEvent); ok && e.OverCapacity() {
		h.overCapacity++
	}
	h.mu.Unlock()

	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Any("payload", event.Payload()),
	}

	switch event.EventType() {
	case shared.EventRegistrationRejected:
		h.logger.Warn("registration rejected", fields...)
	case shared.EventStudentEnrolled:
		if e, ok := event.(shared.StudentEnrolledEvent); ok && e.OverCapacity() {
			h.logger.Warn("vip enrollment over capacity", fields...)
			return nil
		}
		h.logger.Info("domain event", fields...)
	default:
		h.logger.Info("domain event", fields...)
	}

	return nil
}

// Summary - итоговые счётчики сессии.
type Summary struct {
	StudentsAdded int
	Enrollments   int
	Rejections    int
	Completions   int
	OverCapacity  int
}

// Summary возвращает накопленные счётчики.
func (h *AuditHandler) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Summary{
		StudentsAdded: h.counts[shared.EventStudentAdded],
		Enrollments:   h.counts[shared.EventStudentEnrolled],
		Rejections:    h.counts[shared.EventRegistrationRejected],
		Completions:   h.counts[shared.EventCourseCompleted],
		OverCapacity:  h.overCapacity,
	}
}

// LogSummary пишет сводку в журнал.
func (h *AuditHandler) LogSummary() {
	s := h.Summary()
	h.logger.Info("session summary",
		logger.Int("students_added", s.StudentsAdded),
		logger.Int("enrollments", s.Enrollments),
		logger.Int("rejections", s.Rejections),
		logger.Int("completions", s.Completions),
		logger.Int("over_capacity", s.OverCapacity),
	)
}
