package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/resource"
)

// testNow is a Wednesday at noon, inside business hours.
var testNow = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func testContext() Context {
	return Context{Now: testNow, TreatMissingMetricsAsIdle: true}
}

func fp(v float64) *float64 { return &v }

func meta(id, env string) resource.Meta {
	return resource.Meta{ID: id, AccountID: "acct-001", Region: "us-east-1", Env: env}
}

func runningInstance(id, env, instanceType string, cpu float64) resource.Instance {
	return resource.Instance{
		Meta:         meta(id, env),
		InstanceID:   "i-" + id,
		InstanceType: instanceType,
		Name:         "srv-" + id,
		State:        resource.InstanceRunning,
		HourlyCost:   0,
		AvgCPU7d:     fp(cpu),
	}
}

func TestIdleInstanceRule(t *testing.T) {
	snap := &Snapshot{Instances: []resource.Instance{
		runningInstance("a", "dev", "t3.small", 3),
		runningInstance("b", "prod", "m5.large", 45),
	}}

	out := IdleInstanceRule{}.Evaluate(testContext(), snap)
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, "idle_instance-a", d.DetectionID)
	assert.Equal(t, resource.ActionStopInstance, d.Action)
	assert.Equal(t, 85, d.Confidence)
	assert.Equal(t, ModeAutoSafe, d.Mode)
	assert.True(t, d.CanAutoOptimize)
	// t3.small: $0.0208/h * 720h = $14.976; savings are 90% of that.
	assert.InDelta(t, 14.976, d.MonthlyCost, 0.0001)
	assert.InDelta(t, 13.4784, d.PotentialSavings, 0.0001)
}

func TestIdleInstanceRuleConfidenceBumps(t *testing.T) {
	in := runningInstance("a", "dev", "t3.small", 1)
	out := IdleInstanceRule{}.Evaluate(testContext(), &Snapshot{Instances: []resource.Instance{in}})
	require.Len(t, out, 1)
	// 80 base, +10 cpu<2, +5 dev.
	assert.Equal(t, 95, out[0].Confidence)
}

func TestIdleInstanceRuleSkipsStoppedAndMetricless(t *testing.T) {
	stopped := runningInstance("a", "dev", "t3.small", 1)
	stopped.State = resource.InstanceStopped
	noMetrics := runningInstance("b", "dev", "t3.small", 0)
	noMetrics.AvgCPU7d = nil
	noMetrics.CurrentCPU = nil

	out := IdleInstanceRule{}.Evaluate(testContext(), &Snapshot{Instances: []resource.Instance{stopped, noMetrics}})
	assert.Empty(t, out)
}

func TestIdleCIRunnerRule(t *testing.T) {
	runner := runningInstance("ci", "prod", "c5.xlarge", 1)
	runner.Name = "ci-runner-7"
	tagged := runningInstance("tag", "prod", "c5.xlarge", 3)
	tagged.Name = "worker-3"
	tagged.Tags = map[string]string{"role": "gitlab-runner"}
	plain := runningInstance("web", "prod", "c5.xlarge", 1)
	plain.Name = "web-frontend"

	out := IdleCIRunnerRule{}.Evaluate(testContext(), &Snapshot{Instances: []resource.Instance{runner, tagged, plain}})
	require.Len(t, out, 2)

	assert.Equal(t, 100, out[0].Confidence)
	assert.Equal(t, 95, out[1].Confidence)
	assert.Equal(t, resource.ActionTerminateInstance, out[0].Action)
	// Full cost reclaimed on termination.
	assert.InDelta(t, out[0].MonthlyCost, out[0].PotentialSavings, 0.0001)
}

func TestOffHoursDevRuleSilentDuringBusinessHours(t *testing.T) {
	snap := &Snapshot{Instances: []resource.Instance{runningInstance("a", "dev", "t3.small", 3)}}
	out := OffHoursDevRule{}.Evaluate(testContext(), snap)
	assert.Empty(t, out)
}

func TestOffHoursDevRuleWeekend(t *testing.T) {
	rc := testContext()
	rc.Now = time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC) // Saturday afternoon.

	dev := runningInstance("a", "dev", "t3.small", 3)
	prod := runningInstance("b", "prod", "t3.small", 3)
	out := OffHoursDevRule{}.Evaluate(rc, &Snapshot{Instances: []resource.Instance{dev, prod}})
	require.Len(t, out, 1)

	d := out[0]
	// 80 base, +10 weekend, +5 cpu<5.
	assert.Equal(t, 95, d.Confidence)
	assert.InDelta(t, 0.6*d.MonthlyCost, d.PotentialSavings, 0.0001)
}

func TestOffHoursDevRuleLateNight(t *testing.T) {
	rc := testContext()
	rc.Now = time.Date(2025, 3, 12, 22, 0, 0, 0, time.UTC)

	out := OffHoursDevRule{}.Evaluate(rc, &Snapshot{Instances: []resource.Instance{
		runningInstance("a", "dev", "t3.small", 40),
	}})
	require.Len(t, out, 1)
	assert.Equal(t, 80, out[0].Confidence)
}

func TestOverProvisionedInstanceRule(t *testing.T) {
	in := runningInstance("a", "staging", "m5.xlarge", 12)
	in.CurrentMemory = fp(22)

	out := OverProvisionedInstanceRule{}.Evaluate(testContext(), &Snapshot{Instances: []resource.Instance{in}})
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, "m5.large", d.Details.RecommendedInstanceType)
	assert.Equal(t, ModeApproval, d.Mode)
	assert.False(t, d.CanAutoOptimize)
	// 80 base, +10 cpu<15, +5 mem<25, +5 non-prod.
	assert.Equal(t, 100, d.Confidence)
	// Catalog delta m5.xlarge -> m5.large: (0.192-0.096)*720.
	assert.InDelta(t, 69.12, d.PotentialSavings, 0.0001)
}

func TestOverProvisionedInstanceRuleBounds(t *testing.T) {
	idle := runningInstance("a", "dev", "m5.xlarge", 3) // Below the 5% floor; the idle rule owns it.
	hot := runningInstance("b", "dev", "m5.xlarge", 35)
	memBound := runningInstance("c", "dev", "m5.xlarge", 12)
	memBound.CurrentMemory = fp(55)
	smallest := runningInstance("d", "dev", "t3.micro", 12)

	out := OverProvisionedInstanceRule{}.Evaluate(testContext(), &Snapshot{
		Instances: []resource.Instance{idle, hot, memBound, smallest},
	})
	assert.Empty(t, out)
}

func TestInstanceMonthlyPrefersMeteredCost(t *testing.T) {
	in := runningInstance("a", "dev", "t3.small", 3)
	in.HourlyCost = 0.05

	out := IdleInstanceRule{}.Evaluate(testContext(), &Snapshot{Instances: []resource.Instance{in}})
	require.Len(t, out, 1)
	assert.InDelta(t, 36.0, out[0].MonthlyCost, 0.0001)
}
