package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	testingutil "github.com/amirphl/lead-distributor/testing"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withDB runs fn against a fresh database, skipping the test when PostgreSQL is not reachable
func withDB(t *testing.T, fn func(testDB *testingutil.TestDB)) {
	t.Helper()
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fn(testDB)
		return nil
	})
	if errors.Is(err, testingutil.ErrDatabaseUnavailable) {
		t.Skipf("skipping: %v", err)
	}
	require.NoError(t, err)
}

func TestVendorRotationRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewVendorRotationRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByVendor", func(t *testing.T) {
			tenantID := uuid.New()
			vendor := &models.VendorRotation{
				TenantID:     tenantID,
				VendorID:     uuid.New(),
				FullName:     "Jane Roe",
				Participates: true,
				Weight:       1.5,
			}
			require.NoError(t, repo.Save(ctx, vendor))
			assert.NotZero(t, vendor.ID)

			found, err := repo.ByVendor(ctx, tenantID, vendor.VendorID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "Jane Roe", found.FullName)
			assert.InDelta(t, 1.5, found.Weight, 0.0001)
			assert.Nil(t, found.RotationOrder)

			missing, err := repo.ByVendor(ctx, uuid.New(), vendor.VendorID)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("DuplicateVendorInTenantRejected", func(t *testing.T) {
			tenantID := uuid.New()
			vendor, err := fixtures.CreateTestVendor(tenantID, nil, 1)
			require.NoError(t, err)

			dup := &models.VendorRotation{TenantID: tenantID, VendorID: vendor.VendorID, FullName: "Dup", Weight: 1}
			assert.Error(t, repo.Save(ctx, dup))

			// Same vendor in another tenant is a different row
			other := &models.VendorRotation{TenantID: uuid.New(), VendorID: vendor.VendorID, FullName: "Other", Weight: 1}
			assert.NoError(t, repo.Save(ctx, other))
		})

		t.Run("ListEligibleCanonicalOrder", func(t *testing.T) {
			tenantID := uuid.New()
			second, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(2), 1)
			require.NoError(t, err)
			unordered, err := fixtures.CreateTestVendor(tenantID, nil, 1)
			require.NoError(t, err)
			first, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(1), 1)
			require.NoError(t, err)

			off, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(0), 1)
			require.NoError(t, err)
			_, err = repo.Update(ctx, tenantID, off.VendorID, models.VendorRotationPatch{Participates: utils.ToPtr(false)})
			require.NoError(t, err)

			zero, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(0), 1)
			require.NoError(t, err)
			_, err = repo.Update(ctx, tenantID, zero.VendorID, models.VendorRotationPatch{Weight: utils.ToPtr(0.0)})
			require.NoError(t, err)

			eligible, err := repo.ListEligible(ctx, tenantID, nil)
			require.NoError(t, err)
			require.Len(t, eligible, 3)
			assert.Equal(t, first.VendorID, eligible[0].VendorID)
			assert.Equal(t, second.VendorID, eligible[1].VendorID)
			assert.Equal(t, unordered.VendorID, eligible[2].VendorID)
		})

		t.Run("ListEligibleMatchesInMemoryOrder", func(t *testing.T) {
			tenantID := uuid.New()
			for i := 0; i < 6; i++ {
				_, err := fixtures.CreateTestVendor(tenantID, nil, 1)
				require.NoError(t, err)
			}

			eligible, err := repo.ListEligible(ctx, tenantID, nil)
			require.NoError(t, err)
			require.Len(t, eligible, 6)

			sorted := append([]*models.VendorRotation(nil), eligible...)
			models.SortVendorRotations(sorted)
			for i := range eligible {
				assert.Equal(t, sorted[i].VendorID, eligible[i].VendorID)
			}
		})

		t.Run("ListEligiblePipelineRestriction", func(t *testing.T) {
			tenantID := uuid.New()
			pipelineA, pipelineB := uuid.New(), uuid.New()

			anywhere, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(1), 1)
			require.NoError(t, err)
			onlyA, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(2), 1)
			require.NoError(t, err)
			_, err = repo.Update(ctx, tenantID, onlyA.VendorID, models.VendorRotationPatch{RoutingPipelineID: &pipelineA})
			require.NoError(t, err)

			forA, err := repo.ListEligible(ctx, tenantID, &pipelineA)
			require.NoError(t, err)
			assert.Len(t, forA, 2)

			forB, err := repo.ListEligible(ctx, tenantID, &pipelineB)
			require.NoError(t, err)
			require.Len(t, forB, 1)
			assert.Equal(t, anywhere.VendorID, forB[0].VendorID)

			all, err := repo.ListEligible(ctx, tenantID, nil)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})

		t.Run("ListEligibleEmpty", func(t *testing.T) {
			eligible, err := repo.ListEligible(ctx, uuid.New(), nil)
			require.NoError(t, err)
			assert.Empty(t, eligible)
		})

		t.Run("UpdatePatchSemantics", func(t *testing.T) {
			tenantID := uuid.New()
			pipelineID := uuid.New()
			vendor, err := fixtures.CreateTestVendor(tenantID, utils.ToPtr(4), 2)
			require.NoError(t, err)

			updated, err := repo.Update(ctx, tenantID, vendor.VendorID, models.VendorRotationPatch{
				RoutingPipelineID: &pipelineID,
				FullName:          utils.ToPtr("Renamed"),
			})
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.Equal(t, "Renamed", updated.FullName)
			require.NotNil(t, updated.RotationOrder)
			assert.Equal(t, 4, *updated.RotationOrder)
			assert.InDelta(t, 2, updated.Weight, 0.0001)
			require.NotNil(t, updated.RoutingPipelineID)
			assert.Equal(t, pipelineID, *updated.RoutingPipelineID)

			cleared, err := repo.Update(ctx, tenantID, vendor.VendorID, models.VendorRotationPatch{
				ClearRotationOrder:   true,
				ClearRoutingPipeline: true,
			})
			require.NoError(t, err)
			assert.Nil(t, cleared.RotationOrder)
			assert.Nil(t, cleared.RoutingPipelineID)
			assert.True(t, cleared.Participates)
		})

		t.Run("UpdateUnknownVendor", func(t *testing.T) {
			updated, err := repo.Update(ctx, uuid.New(), uuid.New(), models.VendorRotationPatch{Weight: utils.ToPtr(1.0)})
			require.NoError(t, err)
			assert.Nil(t, updated)
		})

		t.Run("UpdateInsideRolledBackTransaction", func(t *testing.T) {
			tenantID := uuid.New()
			vendor, err := fixtures.CreateTestVendor(tenantID, nil, 1)
			require.NoError(t, err)

			errAbort := errors.New("abort")
			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				_, err := repo.Update(txCtx, tenantID, vendor.VendorID, models.VendorRotationPatch{Participates: utils.ToPtr(false)})
				require.NoError(t, err)
				return errAbort
			})
			assert.ErrorIs(t, err, errAbort)

			found, err := repo.ByVendor(ctx, tenantID, vendor.VendorID)
			require.NoError(t, err)
			assert.True(t, found.Participates)
		})

		t.Run("CountAndExists", func(t *testing.T) {
			tenantID := uuid.New()
			_, err := fixtures.CreateMultipleTestVendors(tenantID, 3)
			require.NoError(t, err)

			count, err := repo.Count(ctx, models.VendorRotationFilter{TenantID: &tenantID})
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)

			exists, err := repo.Exists(ctx, models.VendorRotationFilter{TenantID: &tenantID, Participates: utils.ToPtr(false)})
			require.NoError(t, err)
			assert.False(t, exists)

			listed, err := repo.ListByTenant(ctx, tenantID)
			require.NoError(t, err)
			require.Len(t, listed, 3)
			assert.Equal(t, 1, *listed[0].RotationOrder)
		})
	})
}

func TestDistributionStateRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewDistributionStateRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByTenantMissing", func(t *testing.T) {
			state, err := repo.ByTenant(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, state)
		})

		t.Run("WithCursorLockCreatesAndCommits", func(t *testing.T) {
			tenantID := uuid.New()
			vendorID := uuid.New()

			err := repo.WithCursorLock(ctx, tenantID, func(txCtx context.Context, state *models.DistributionState) error {
				assert.False(t, state.HasCursor())
				state.LastVendorID = &vendorID
				state.LastSlot = utils.ToPtr(3)
				state.AssignmentCount++
				return repo.SaveCursor(txCtx, state)
			})
			require.NoError(t, err)

			state, err := repo.ByTenant(ctx, tenantID)
			require.NoError(t, err)
			require.NotNil(t, state)
			require.NotNil(t, state.LastVendorID)
			assert.Equal(t, vendorID, *state.LastVendorID)
			assert.Equal(t, 3, *state.LastSlot)
			assert.Equal(t, int64(1), state.AssignmentCount)
		})

		t.Run("WithCursorLockRollsBackOnError", func(t *testing.T) {
			tenantID := uuid.New()
			first := uuid.New()
			require.NoError(t, repo.SaveCursor(ctx, &models.DistributionState{TenantID: tenantID, LastVendorID: &first}))

			errAbort := errors.New("abort")
			err := repo.WithCursorLock(ctx, tenantID, func(txCtx context.Context, state *models.DistributionState) error {
				other := uuid.New()
				state.LastVendorID = &other
				require.NoError(t, repo.SaveCursor(txCtx, state))
				return errAbort
			})
			assert.ErrorIs(t, err, errAbort)

			state, err := repo.ByTenant(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, first, *state.LastVendorID)
		})

		t.Run("WithCursorLockSerializesTenant", func(t *testing.T) {
			tenantID := uuid.New()
			const workers = 8

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- repo.WithCursorLock(ctx, tenantID, func(txCtx context.Context, state *models.DistributionState) error {
						count := state.AssignmentCount
						time.Sleep(10 * time.Millisecond)
						state.AssignmentCount = count + 1
						return repo.SaveCursor(txCtx, state)
					})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			state, err := repo.ByTenant(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, int64(workers), state.AssignmentCount)
		})

		t.Run("SaveCursorNil", func(t *testing.T) {
			assert.Error(t, repo.SaveCursor(ctx, nil))
		})
	})
}

func TestPipelineRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewPipelineRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenantID := uuid.New()
		sales, stages, err := fixtures.CreateTestPipeline(tenantID, "Sales", true, "New", "Contacted", "Won")
		require.NoError(t, err)
		_, _, err = fixtures.CreateTestPipeline(tenantID, "Support", false, "Open")
		require.NoError(t, err)
		empty, _, err := fixtures.CreateTestPipeline(tenantID, "Empty", false)
		require.NoError(t, err)

		t.Run("ByTenantAndID", func(t *testing.T) {
			found, err := repo.ByTenantAndID(ctx, tenantID, sales.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "Sales", found.Name)

			foreign, err := repo.ByTenantAndID(ctx, uuid.New(), sales.ID)
			require.NoError(t, err)
			assert.Nil(t, foreign)
		})

		t.Run("DefaultForTenant", func(t *testing.T) {
			found, err := repo.DefaultForTenant(ctx, tenantID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, sales.ID, found.ID)

			none, err := repo.DefaultForTenant(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, none)
		})

		t.Run("InitialStage", func(t *testing.T) {
			stage, err := repo.InitialStage(ctx, sales.ID)
			require.NoError(t, err)
			require.NotNil(t, stage)
			assert.Equal(t, stages[0].ID, stage.ID)

			none, err := repo.InitialStage(ctx, empty.ID)
			require.NoError(t, err)
			assert.Nil(t, none)
		})
	})
}

func TestLeadAssignmentLogRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewLeadAssignmentLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		tenantID := uuid.New()
		vendorA, vendorB := uuid.New(), uuid.New()
		pipelineID, stageID := uuid.New(), uuid.New()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		webForm := "web_form"
		for i := 0; i < 5; i++ {
			vendorID := vendorA
			var origin *string
			if i%2 == 1 {
				vendorID = vendorB
				origin = &webForm
			}
			_, err := fixtures.CreateTestAssignmentLog(tenantID, vendorID, pipelineID, stageID, origin, base.Add(time.Duration(i)*time.Hour))
			require.NoError(t, err)
		}
		_, err := fixtures.CreateTestAssignmentLog(uuid.New(), vendorA, pipelineID, stageID, nil, base)
		require.NoError(t, err)

		t.Run("SaveAssignsID", func(t *testing.T) {
			entry := &models.LeadAssignmentLog{
				UUID:       uuid.New(),
				TenantID:   uuid.New(),
				LeadID:     uuid.New(),
				VendorID:   vendorA,
				PipelineID: pipelineID,
				StageID:    stageID,
				CreatedAt:  utils.UTCNow(),
			}
			require.NoError(t, repo.Save(ctx, entry))
			assert.NotZero(t, entry.ID)
		})

		t.Run("ByFilterNewestFirst", func(t *testing.T) {
			entries, err := repo.ByFilter(ctx, models.LeadAssignmentLogFilter{TenantID: &tenantID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, entries, 5)
			for i := 1; i < len(entries); i++ {
				assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
			}
		})

		t.Run("ByFilterVendorAndOrigin", func(t *testing.T) {
			entries, err := repo.ByFilter(ctx, models.LeadAssignmentLogFilter{TenantID: &tenantID, VendorID: &vendorB}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 2)

			count, err := repo.Count(ctx, models.LeadAssignmentLogFilter{TenantID: &tenantID, Origin: &webForm})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		t.Run("ByFilterDateRangeInclusive", func(t *testing.T) {
			from := base.Add(1 * time.Hour)
			to := base.Add(3 * time.Hour)
			entries, err := repo.ByFilter(ctx, models.LeadAssignmentLogFilter{TenantID: &tenantID, CreatedAfter: &from, CreatedBefore: &to}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 3)
		})

		t.Run("Paging", func(t *testing.T) {
			page, err := repo.ByFilter(ctx, models.LeadAssignmentLogFilter{TenantID: &tenantID}, "", 2, 4)
			require.NoError(t, err)
			assert.Len(t, page, 1)
		})
	})
}
