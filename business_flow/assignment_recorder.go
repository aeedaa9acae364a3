package businessflow

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amirphl/lead-distributor/app/services"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
)

// AssignmentRecorder receives committed assignments. Record never blocks the caller
// and never reports failure; losing an entry must not undo an assignment.
// requestID, when set, travels with the entry and becomes the event's correlation id.
type AssignmentRecorder interface {
	Record(entry models.LeadAssignmentLog, requestID string)
}

type queuedAssignment struct {
	entry     models.LeadAssignmentLog
	requestID string
}

// AsyncAssignmentRecorder buffers entries and persists them from worker goroutines.
// Each persisted entry is also published as a leads.assigned.v1 event.
type AsyncAssignmentRecorder struct {
	logRepo      repository.LeadAssignmentLogRepository
	publisher    services.EventPublisher
	logger       *log.Logger
	workers      int
	writeTimeout time.Duration

	queue chan queuedAssignment
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewAsyncAssignmentRecorder creates a recorder; call Start before recording
func NewAsyncAssignmentRecorder(
	logRepo repository.LeadAssignmentLogRepository,
	publisher services.EventPublisher,
	bufferSize, workers int,
	writeTimeout time.Duration,
	logger *log.Logger,
) *AsyncAssignmentRecorder {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = services.NoopEventPublisher{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AsyncAssignmentRecorder{
		logRepo:      logRepo,
		publisher:    publisher,
		logger:       logger,
		workers:      workers,
		writeTimeout: writeTimeout,
		queue:        make(chan queuedAssignment, bufferSize),
	}
}

// Start launches the workers. The returned function stops accepting entries,
// drains the buffer and waits for the workers to finish.
func (r *AsyncAssignmentRecorder) Start() func() {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return r.stop
	}
	r.started = true
	r.mu.Unlock()

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for item := range r.queue {
				r.write(item)
			}
		}()
	}
	return r.stop
}

func (r *AsyncAssignmentRecorder) stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Record enqueues an entry, dropping it when the buffer is full or the recorder stopped
func (r *AsyncAssignmentRecorder) Record(entry models.LeadAssignmentLog, requestID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		assignmentLogDropped.Inc()
		r.logger.Printf("Assignment log dropped (recorder stopped): lead=%s vendor=%s", entry.LeadID, entry.VendorID)
		return
	}

	select {
	case r.queue <- queuedAssignment{entry: entry, requestID: requestID}:
	default:
		assignmentLogDropped.Inc()
		r.logger.Printf("Assignment log dropped (buffer full): lead=%s vendor=%s", entry.LeadID, entry.VendorID)
	}
}

func (r *AsyncAssignmentRecorder) write(item queuedAssignment) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if item.requestID != "" {
		ctx = context.WithValue(ctx, utils.RequestIDKey, item.requestID)
	}

	entry := item.entry

	if err := r.logRepo.Save(ctx, &entry); err != nil {
		assignmentLogWriteFailures.Inc()
		r.logger.Printf("Failed to write assignment log: lead=%s vendor=%s err=%v", entry.LeadID, entry.VendorID, err)
	}

	event := services.LeadAssignedEvent{
		AssignmentID: entry.UUID.String(),
		TenantID:     entry.TenantID.String(),
		LeadID:       entry.LeadID.String(),
		VendorID:     entry.VendorID.String(),
		PipelineID:   entry.PipelineID.String(),
		StageID:      entry.StageID.String(),
		Origin:       entry.Origin,
		AssignedAt:   entry.CreatedAt,
	}
	if err := r.publisher.PublishLeadAssigned(ctx, event); err != nil {
		assignmentEventPublishFailures.Inc()
		r.logger.Printf("Failed to publish lead assigned event: lead=%s err=%v", entry.LeadID, err)
	}
}
