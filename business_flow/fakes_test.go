package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/lead-distributor/app/services"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// vendorID returns a deterministic id whose byte order follows n
func vendorID(n int) uuid.UUID {
	var id uuid.UUID
	id[14] = byte(n >> 8)
	id[15] = byte(n)
	return id
}

func newVendor(tenantID uuid.UUID, n int, name string, weight float64, order *int) *models.VendorRotation {
	now := utils.UTCNow()
	return &models.VendorRotation{
		TenantID:      tenantID,
		VendorID:      vendorID(n),
		FullName:      name,
		Participates:  true,
		RotationOrder: order,
		Weight:        weight,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func requireBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, code, bizErr.Code)
}

// fakeVendorRepo is an in-memory rotation registry
type fakeVendorRepo struct {
	mu      sync.Mutex
	nextID  uint
	vendors []*models.VendorRotation
	listErr error
}

func newFakeVendorRepo(vendors ...*models.VendorRotation) *fakeVendorRepo {
	r := &fakeVendorRepo{}
	for _, v := range vendors {
		_ = r.Save(context.Background(), v)
	}
	return r
}

func (r *fakeVendorRepo) ByID(ctx context.Context, id uint) (*models.VendorRotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vendors {
		if v.ID == id {
			c := *v
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeVendorRepo) matches(v *models.VendorRotation, f models.VendorRotationFilter) bool {
	if f.ID != nil && v.ID != *f.ID {
		return false
	}
	if f.TenantID != nil && v.TenantID != *f.TenantID {
		return false
	}
	if f.VendorID != nil && v.VendorID != *f.VendorID {
		return false
	}
	if f.Participates != nil && v.Participates != *f.Participates {
		return false
	}
	if f.RoutingPipelineID != nil && (v.RoutingPipelineID == nil || *v.RoutingPipelineID != *f.RoutingPipelineID) {
		return false
	}
	return true
}

func (r *fakeVendorRepo) ByFilter(ctx context.Context, filter models.VendorRotationFilter, orderBy string, limit, offset int) ([]*models.VendorRotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VendorRotation
	for _, v := range r.vendors {
		if r.matches(v, filter) {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeVendorRepo) Save(ctx context.Context, entity *models.VendorRotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entity.ID = r.nextID
	c := *entity
	r.vendors = append(r.vendors, &c)
	return nil
}

func (r *fakeVendorRepo) SaveBatch(ctx context.Context, entities []*models.VendorRotation) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeVendorRepo) Count(ctx context.Context, filter models.VendorRotationFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *fakeVendorRepo) Exists(ctx context.Context, filter models.VendorRotationFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeVendorRepo) ByVendor(ctx context.Context, tenantID, vendorID uuid.UUID) (*models.VendorRotation, error) {
	items, _ := r.ByFilter(ctx, models.VendorRotationFilter{TenantID: &tenantID, VendorID: &vendorID}, "", 1, 0)
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *fakeVendorRepo) ListEligible(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) ([]*models.VendorRotation, error) {
	r.mu.Lock()
	listErr := r.listErr
	r.mu.Unlock()
	if listErr != nil {
		return nil, listErr
	}
	items, _ := r.ByFilter(ctx, models.VendorRotationFilter{TenantID: &tenantID}, "", 0, 0)
	out := make([]*models.VendorRotation, 0, len(items))
	for _, v := range items {
		if v.IsEligibleFor(pipelineID) {
			out = append(out, v)
		}
	}
	models.SortVendorRotations(out)
	return out, nil
}

func (r *fakeVendorRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.VendorRotation, error) {
	return r.ByFilter(ctx, models.VendorRotationFilter{TenantID: &tenantID}, "", 0, 0)
}

func (r *fakeVendorRepo) Update(ctx context.Context, tenantID, vendorID uuid.UUID, patch models.VendorRotationPatch) (*models.VendorRotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vendors {
		if v.TenantID != tenantID || v.VendorID != vendorID {
			continue
		}
		if patch.Participates != nil {
			v.Participates = *patch.Participates
		}
		if patch.RotationOrder != nil {
			v.RotationOrder = utils.ToPtr(*patch.RotationOrder)
		}
		if patch.ClearRotationOrder {
			v.RotationOrder = nil
		}
		if patch.Weight != nil {
			v.Weight = *patch.Weight
		}
		if patch.RoutingPipelineID != nil {
			v.RoutingPipelineID = utils.ToPtr(*patch.RoutingPipelineID)
		}
		if patch.ClearRoutingPipeline {
			v.RoutingPipelineID = nil
		}
		if patch.FullName != nil {
			v.FullName = *patch.FullName
		}
		if patch.Email != nil {
			v.Email = *patch.Email
		}
		v.UpdatedAt = utils.UTCNow()
		c := *v
		return &c, nil
	}
	return nil, nil
}

// setParticipation flips a vendor in place, bypassing the flow
func (r *fakeVendorRepo) setParticipation(tenantID uuid.UUID, n int, participates bool) {
	p := participates
	_, _ = r.Update(context.Background(), tenantID, vendorID(n), models.VendorRotationPatch{Participates: &p})
}

type fakeStateTxKey struct{}

type fakeStateTx struct {
	pending *models.DistributionState
}

// fakeStateRepo keeps cursors in memory. WithCursorLock holds a per-tenant mutex the
// way SELECT ... FOR UPDATE holds the row, and SaveCursor inside it is only applied
// when fn returns nil.
type fakeStateRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*sync.Mutex
	states    map[uuid.UUID]models.DistributionState
	saveErr   error
	saveDelay time.Duration
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{
		rows:   make(map[uuid.UUID]*sync.Mutex),
		states: make(map[uuid.UUID]models.DistributionState),
	}
}

func (r *fakeStateRepo) rowLock(tenantID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[tenantID]
	if !ok {
		m = &sync.Mutex{}
		r.rows[tenantID] = m
	}
	return m
}

func (r *fakeStateRepo) ByTenant(ctx context.Context, tenantID uuid.UUID) (*models.DistributionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[tenantID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeStateRepo) WithCursorLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, state *models.DistributionState) error) error {
	row := r.rowLock(tenantID)
	row.Lock()
	defer row.Unlock()

	r.mu.Lock()
	state, ok := r.states[tenantID]
	if !ok {
		state = models.DistributionState{TenantID: tenantID, CreatedAt: utils.UTCNow(), UpdatedAt: utils.UTCNow()}
	}
	r.mu.Unlock()

	tx := &fakeStateTx{}
	if err := fn(context.WithValue(ctx, fakeStateTxKey{}, tx), &state); err != nil {
		return err
	}
	if tx.pending != nil {
		r.mu.Lock()
		r.states[tenantID] = *tx.pending
		r.mu.Unlock()
	}
	return nil
}

func (r *fakeStateRepo) SaveCursor(ctx context.Context, state *models.DistributionState) error {
	r.mu.Lock()
	saveErr, delay := r.saveErr, r.saveDelay
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if saveErr != nil {
		return saveErr
	}

	c := *state
	c.UpdatedAt = utils.UTCNow()
	if tx, ok := ctx.Value(fakeStateTxKey{}).(*fakeStateTx); ok {
		tx.pending = &c
		return nil
	}
	r.mu.Lock()
	r.states[state.TenantID] = c
	r.mu.Unlock()
	return nil
}

func (r *fakeStateRepo) setCursor(tenantID uuid.UUID, last *uuid.UUID, slot *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.states[tenantID]
	s.TenantID = tenantID
	s.LastVendorID = last
	s.LastSlot = slot
	s.UpdatedAt = utils.UTCNow()
	r.states[tenantID] = s
}

// fakePipelineRepo serves pipelines and stages from memory
type fakePipelineRepo struct {
	mu        sync.Mutex
	pipelines []*models.Pipeline
	stages    []*models.PipelineStage
	err       error
}

func (r *fakePipelineRepo) addPipeline(tenantID uuid.UUID, name string, isDefault bool, stagePositions ...int) (*models.Pipeline, []*models.PipelineStage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &models.Pipeline{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		IsDefault: isDefault,
		CreatedAt: utils.UTCNow().Add(time.Duration(len(r.pipelines)) * time.Millisecond),
	}
	r.pipelines = append(r.pipelines, p)
	var stages []*models.PipelineStage
	for _, pos := range stagePositions {
		s := &models.PipelineStage{ID: uuid.New(), PipelineID: p.ID, Name: name + " stage", Position: pos}
		r.stages = append(r.stages, s)
		stages = append(stages, s)
	}
	return p, stages
}

func (r *fakePipelineRepo) ByTenantAndID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.pipelines {
		if p.TenantID == tenantID && p.ID == pipelineID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakePipelineRepo) DefaultForTenant(ctx context.Context, tenantID uuid.UUID) (*models.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var best *models.Pipeline
	for _, p := range r.pipelines {
		if p.TenantID == tenantID && p.IsDefault && (best == nil || p.CreatedAt.Before(best.CreatedAt)) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (r *fakePipelineRepo) InitialStage(ctx context.Context, pipelineID uuid.UUID) (*models.PipelineStage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var best *models.PipelineStage
	for _, s := range r.stages {
		if s.PipelineID == pipelineID && (best == nil || s.Position < best.Position) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

// fakeLogRepo is an in-memory audit log
type fakeLogRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []*models.LeadAssignmentLog
	saveErr error
}

func (r *fakeLogRepo) ByID(ctx context.Context, id uint) (*models.LeadAssignmentLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func logMatches(e *models.LeadAssignmentLog, f models.LeadAssignmentLogFilter) bool {
	switch {
	case f.ID != nil && e.ID != *f.ID:
		return false
	case f.TenantID != nil && e.TenantID != *f.TenantID:
		return false
	case f.LeadID != nil && e.LeadID != *f.LeadID:
		return false
	case f.VendorID != nil && e.VendorID != *f.VendorID:
		return false
	case f.PipelineID != nil && e.PipelineID != *f.PipelineID:
		return false
	case f.Origin != nil && (e.Origin == nil || *e.Origin != *f.Origin):
		return false
	case f.CreatedAfter != nil && e.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && e.CreatedAt.After(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *fakeLogRepo) ByFilter(ctx context.Context, filter models.LeadAssignmentLogFilter, orderBy string, limit, offset int) ([]*models.LeadAssignmentLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LeadAssignmentLog
	for _, e := range r.entries {
		if logMatches(e, filter) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLogRepo) Save(ctx context.Context, entity *models.LeadAssignmentLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.nextID++
	entity.ID = r.nextID
	c := *entity
	r.entries = append(r.entries, &c)
	return nil
}

func (r *fakeLogRepo) SaveBatch(ctx context.Context, entities []*models.LeadAssignmentLog) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeLogRepo) Count(ctx context.Context, filter models.LeadAssignmentLogFilter) (int64, error) {
	items, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(items)), nil
}

func (r *fakeLogRepo) Exists(ctx context.Context, filter models.LeadAssignmentLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeLogRepo) stored() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeRecorder captures recorded entries synchronously
type fakeRecorder struct {
	mu         sync.Mutex
	entries    []models.LeadAssignmentLog
	requestIDs []string
}

func (r *fakeRecorder) Record(entry models.LeadAssignmentLog, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	r.requestIDs = append(r.requestIDs, requestID)
}

func (r *fakeRecorder) recorded() []models.LeadAssignmentLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.LeadAssignmentLog(nil), r.entries...)
}

// fakePublisher captures published events
type fakePublisher struct {
	mu         sync.Mutex
	events     []services.LeadAssignedEvent
	requestIDs []any
	err        error
}

func (p *fakePublisher) PublishLeadAssigned(ctx context.Context, event services.LeadAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestIDs = append(p.requestIDs, ctx.Value(utils.RequestIDKey))
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) seenRequestIDs() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.requestIDs...)
}

func (p *fakePublisher) published() []services.LeadAssignedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]services.LeadAssignedEvent(nil), p.events...)
}

// passthroughLocker leaves serialization to the cursor row lock
type passthroughLocker struct{}

func (passthroughLocker) WithTenantLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
