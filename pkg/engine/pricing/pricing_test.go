package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceMonthlyCost(t *testing.T) {
	assert.InDelta(t, 14.976, InstanceMonthlyCost("t3.small"), 0.0001)
	// Unknown types fall back to $0.10/h.
	assert.InDelta(t, 72.0, InstanceMonthlyCost("z9.mega"), 0.0001)
}

func TestVolumeMonthlyCost(t *testing.T) {
	gp2 := VolumeMonthlyCost("gp2", 500)
	gp3 := VolumeMonthlyCost("gp3", 500)
	assert.InDelta(t, 50.0, gp2, 0.0001)
	assert.InDelta(t, 40.0, gp3, 0.0001)
	assert.InDelta(t, 10.0, gp2-gp3, 0.0001)
}

func TestRDSMonthlyCost(t *testing.T) {
	single := RDSMonthlyCost("db.t3.medium", false)
	assert.InDelta(t, 48.96, single, 0.0001)
	// The standby doubles the bill.
	assert.InDelta(t, 2*single, RDSMonthlyCost("db.t3.medium", true), 0.0001)
}

func TestSnapshotMonthlyCost(t *testing.T) {
	assert.InDelta(t, 5.0, SnapshotMonthlyCost(100), 0.0001)
}

func TestUnattachedEIPMonthlyCost(t *testing.T) {
	assert.InDelta(t, 3.6, UnattachedEIPMonthlyCost(), 0.0001)
}

func TestLambdaMonthlyCost(t *testing.T) {
	// 128MB, 100ms, 1M invocations/month: 12500 GB-s.
	got := LambdaMonthlyCost(128, 100, 1_000_000)
	assert.InDelta(t, 12500*LambdaGBSecondRate, got, 0.001)
}

func TestRecommendedSmallerInstance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"t3.large", "t3.medium"},
		{"t3.micro", ""},
		{"m5.2xlarge", "m5.xlarge"},
		{"unknown.type", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RecommendedSmallerInstance(tc.in), tc.in)
	}
}

func TestDownsizedRDSClass(t *testing.T) {
	assert.Equal(t, "db.t3.small", DownsizedRDSClass("db.t3.medium"))
	// No-op at the floor.
	assert.Equal(t, "db.t3.micro", DownsizedRDSClass("db.t3.micro"))
	assert.Equal(t, "db.r5.large", DownsizedRDSClass("db.r5.large"))
}

func TestS3TieringSavingsPositive(t *testing.T) {
	s := S3TieringSavings(100)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, S3MonthlyCost(100))
}
