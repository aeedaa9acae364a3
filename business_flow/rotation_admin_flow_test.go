package businessflow

import (
	"context"
	"math"
	"testing"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRotationFixture(t *testing.T) (*distributionFixture, RotationFlow) {
	t.Helper()
	fx := newDistributionFixture(t)
	return fx, NewRotationFlow(fx.vendors, fx.pipelines)
}

func TestRegisterVendor(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		fx, flow := newRotationFixture(t)
		vid := uuid.New()

		resp, err := flow.RegisterVendor(context.Background(), fx.tenantID, &dto.RegisterVendorRequest{
			VendorID: vid.String(),
			FullName: "  Jane Doe ",
			Email:    "jane@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, vid.String(), resp.VendorID)
		assert.Equal(t, "Jane Doe", resp.FullName)
		assert.True(t, resp.Participates)
		assert.Equal(t, 1.0, resp.Weight)
		assert.Nil(t, resp.RotationOrder)
		assert.Nil(t, resp.RoutingPipelineID)

		stored, err := fx.vendors.ByVendor(context.Background(), fx.tenantID, vid)
		require.NoError(t, err)
		require.NotNil(t, stored)
	})

	t.Run("ExplicitSettings", func(t *testing.T) {
		fx, flow := newRotationFixture(t)
		p, _ := fx.pipelines.addPipeline(fx.tenantID, "Routed", false, 0)
		pipelineID := p.ID.String()

		resp, err := flow.RegisterVendor(context.Background(), fx.tenantID, &dto.RegisterVendorRequest{
			VendorID:          uuid.NewString(),
			FullName:          "Bob",
			Participates:      utils.ToPtr(false),
			RotationOrder:     utils.ToPtr(4),
			Weight:            utils.ToPtr(2.5),
			RoutingPipelineID: &pipelineID,
		})
		require.NoError(t, err)
		assert.False(t, resp.Participates)
		assert.Equal(t, 4, *resp.RotationOrder)
		assert.Equal(t, 2.5, resp.Weight)
		assert.Equal(t, pipelineID, *resp.RoutingPipelineID)
	})

	t.Run("Rejections", func(t *testing.T) {
		fx, flow := newRotationFixture(t)
		existing := uuid.New()
		_, err := flow.RegisterVendor(context.Background(), fx.tenantID, &dto.RegisterVendorRequest{VendorID: existing.String(), FullName: "Existing"})
		require.NoError(t, err)

		missingPipeline := uuid.NewString()
		tests := []struct {
			name     string
			tenantID uuid.UUID
			req      *dto.RegisterVendorRequest
			code     string
		}{
			{"MissingTenant", uuid.Nil, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x"}, "TENANT_ID_REQUIRED"},
			{"NilRequest", fx.tenantID, nil, "ROTATION_VALIDATION_FAILED"},
			{"MalformedVendor", fx.tenantID, &dto.RegisterVendorRequest{VendorID: "v-1", FullName: "x"}, "INVALID_VENDOR_ID"},
			{"BlankName", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "   "}, "ROTATION_VALIDATION_FAILED"},
			{"NegativeWeight", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x", Weight: utils.ToPtr(-0.5)}, "INVALID_WEIGHT"},
			{"InfiniteWeight", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x", Weight: utils.ToPtr(math.Inf(1))}, "INVALID_WEIGHT"},
			{"WeightAboveColumnRange", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x", Weight: utils.ToPtr(1e7)}, "INVALID_WEIGHT"},
			{"WeightBelowColumnScale", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x", Weight: utils.ToPtr(0.00004)}, "INVALID_WEIGHT"},
			{"UnknownPipeline", fx.tenantID, &dto.RegisterVendorRequest{VendorID: uuid.NewString(), FullName: "x", RoutingPipelineID: &missingPipeline}, "PIPELINE_NOT_FOUND"},
			{"Duplicate", fx.tenantID, &dto.RegisterVendorRequest{VendorID: existing.String(), FullName: "Again"}, "VENDOR_ROTATION_EXISTS"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := flow.RegisterVendor(context.Background(), tt.tenantID, tt.req)
				requireBusinessCode(t, err, tt.code)
			})
		}
	})
}

func TestSetVendorRotation(t *testing.T) {
	setup := func(t *testing.T) (*distributionFixture, RotationFlow, uuid.UUID) {
		fx, flow := newRotationFixture(t)
		vid := uuid.New()
		_, err := flow.RegisterVendor(context.Background(), fx.tenantID, &dto.RegisterVendorRequest{
			VendorID:      vid.String(),
			FullName:      "Jane",
			RotationOrder: utils.ToPtr(2),
		})
		require.NoError(t, err)
		return fx, flow, vid
	}

	t.Run("PartialUpdate", func(t *testing.T) {
		fx, flow, vid := setup(t)
		resp, err := flow.SetVendorRotation(context.Background(), fx.tenantID, vid.String(), &dto.UpdateVendorRotationRequest{
			Weight:   utils.ToPtr(3.0),
			FullName: utils.ToPtr(" Jane Smith "),
		})
		require.NoError(t, err)
		assert.Equal(t, 3.0, resp.Weight)
		assert.Equal(t, "Jane Smith", resp.FullName)
		assert.Equal(t, 2, *resp.RotationOrder)
		assert.True(t, resp.Participates)
	})

	t.Run("ClearNullableFields", func(t *testing.T) {
		fx, flow, vid := setup(t)
		p, _ := fx.pipelines.addPipeline(fx.tenantID, "Routed", false, 0)
		pipelineID := p.ID.String()

		resp, err := flow.SetVendorRotation(context.Background(), fx.tenantID, vid.String(), &dto.UpdateVendorRotationRequest{RoutingPipelineID: &pipelineID})
		require.NoError(t, err)
		require.NotNil(t, resp.RoutingPipelineID)

		resp, err = flow.SetVendorRotation(context.Background(), fx.tenantID, vid.String(), &dto.UpdateVendorRotationRequest{
			ClearRotationOrder:   true,
			ClearRoutingPipeline: true,
		})
		require.NoError(t, err)
		assert.Nil(t, resp.RotationOrder)
		assert.Nil(t, resp.RoutingPipelineID)
	})

	t.Run("WeightBoundsAccepted", func(t *testing.T) {
		fx, flow, vid := setup(t)
		for _, w := range []float64{0.0001, 999999.9999} {
			resp, err := flow.SetVendorRotation(context.Background(), fx.tenantID, vid.String(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(w)})
			require.NoError(t, err)
			assert.Equal(t, w, resp.Weight)
		}
	})

	t.Run("ZeroWeightLeavesRotation", func(t *testing.T) {
		fx, flow, vid := setup(t)
		_, err := flow.SetVendorRotation(context.Background(), fx.tenantID, vid.String(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(0.0)})
		require.NoError(t, err)

		eligible, err := flow.ListEligible(context.Background(), fx.tenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, eligible.Total)

		all, err := flow.ListVendors(context.Background(), fx.tenantID)
		require.NoError(t, err)
		assert.Equal(t, 1, all.Total)
	})

	t.Run("Rejections", func(t *testing.T) {
		fx, flow, vid := setup(t)
		other := uuid.NewString()

		tests := []struct {
			name     string
			vendorID string
			req      *dto.UpdateVendorRotationRequest
			code     string
		}{
			{"MalformedVendor", "abc", &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(1.0)}, "INVALID_VENDOR_ID"},
			{"NilRequest", vid.String(), nil, "ROTATION_UPDATE_REQUIRED"},
			{"EmptyPatch", vid.String(), &dto.UpdateVendorRotationRequest{}, "ROTATION_UPDATE_REQUIRED"},
			{"ClearAndSetOrder", vid.String(), &dto.UpdateVendorRotationRequest{RotationOrder: utils.ToPtr(1), ClearRotationOrder: true}, "ROTATION_VALIDATION_FAILED"},
			{"ClearAndSetPipeline", vid.String(), &dto.UpdateVendorRotationRequest{RoutingPipelineID: &other, ClearRoutingPipeline: true}, "ROTATION_VALIDATION_FAILED"},
			{"NegativeWeight", vid.String(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(-1.0)}, "INVALID_WEIGHT"},
			{"WeightAboveColumnRange", vid.String(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(1000000.0)}, "INVALID_WEIGHT"},
			{"WeightBelowColumnScale", vid.String(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(0.00009)}, "INVALID_WEIGHT"},
			{"BlankName", vid.String(), &dto.UpdateVendorRotationRequest{FullName: utils.ToPtr(" ")}, "ROTATION_VALIDATION_FAILED"},
			{"UnknownPipeline", vid.String(), &dto.UpdateVendorRotationRequest{RoutingPipelineID: &other}, "PIPELINE_NOT_FOUND"},
			{"UnknownVendor", uuid.NewString(), &dto.UpdateVendorRotationRequest{Weight: utils.ToPtr(1.0)}, "VENDOR_ROTATION_NOT_FOUND"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := flow.SetVendorRotation(context.Background(), fx.tenantID, tt.vendorID, tt.req)
				requireBusinessCode(t, err, tt.code)
			})
		}
	})

	t.Run("ChangesApplyToNextAssignment", func(t *testing.T) {
		fx := newDistributionFixture(t, threeVendors()...)
		flow := NewRotationFlow(fx.vendors, fx.pipelines)
		assert.Equal(t, []string{"A"}, fx.assignNames(t, 1))

		_, err := flow.SetVendorRotation(context.Background(), fx.tenantID, vendorID(2).String(), &dto.UpdateVendorRotationRequest{Participates: utils.ToPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A", "C"}, fx.assignNames(t, 3))
	})
}

func TestListRotations(t *testing.T) {
	fx := newDistributionFixture(t)
	flow := NewRotationFlow(fx.vendors, fx.pipelines)
	routed, _ := fx.pipelines.addPipeline(fx.tenantID, "Routed", false, 0)

	a := newVendor(fx.tenantID, 1, "A", 1, utils.ToPtr(2))
	b := newVendor(fx.tenantID, 2, "B", 1, utils.ToPtr(1))
	c := newVendor(fx.tenantID, 3, "C", 1, nil)
	c.RoutingPipelineID = &routed.ID
	off := newVendor(fx.tenantID, 4, "Off", 1, utils.ToPtr(0))
	off.Participates = false
	for _, v := range []*models.VendorRotation{a, b, c, off} {
		require.NoError(t, fx.vendors.Save(context.Background(), v))
	}

	names := func(resp *dto.ListVendorRotationsResponse) []string {
		out := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			out = append(out, item.FullName)
		}
		return out
	}

	eligible, err := flow.ListEligible(context.Background(), fx.tenantID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, names(eligible))

	other := uuid.NewString()
	eligible, err = flow.ListEligible(context.Background(), fx.tenantID, &dto.ListEligibleVendorsRequest{PipelineID: &other})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, names(eligible))

	all, err := flow.ListVendors(context.Background(), fx.tenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Off", "B", "A", "C"}, names(all))
	assert.Equal(t, 4, all.Total)

	bad := "x"
	_, err = flow.ListEligible(context.Background(), fx.tenantID, &dto.ListEligibleVendorsRequest{PipelineID: &bad})
	requireBusinessCode(t, err, "INVALID_PIPELINE_ID")
}
