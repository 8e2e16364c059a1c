package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/resource"
)

func asg(id, name string, min, max, desired int, util float64) resource.AutoscalingGroup {
	return resource.AutoscalingGroup{
		Meta:               meta(id, "staging"),
		Name:               name,
		InstanceType:       "t3.medium",
		MinSize:            min,
		MaxSize:            max,
		DesiredCapacity:    desired,
		CurrentUtilization: util,
	}
}

func TestForgottenPreviewRule(t *testing.T) {
	old := asg("a", "preview-pr-1842", 1, 4, 2, 4)
	old.CreatedAt = testNow.AddDate(0, 0, -16)
	fresh := asg("b", "pr-99", 1, 4, 2, 4)
	fresh.CreatedAt = testNow.AddDate(0, 0, -2)
	busy := asg("c", "preview-pr-7", 1, 4, 2, 60)
	busy.CreatedAt = testNow.AddDate(0, 0, -16)

	out := ForgottenPreviewRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{old, fresh, busy}})
	require.Len(t, out, 2)

	// 85 base, +10 age>7, +5 age>14.
	assert.Equal(t, 100, out[0].Confidence)
	assert.Equal(t, 85, out[1].Confidence)
	assert.Equal(t, resource.ActionTerminateASG, out[0].Action)
	// 2 x t3.medium.
	assert.InDelta(t, 2*29.952, out[0].MonthlyCost, 0.0001)
	assert.InDelta(t, out[0].MonthlyCost, out[0].PotentialSavings, 0.0001)
}

func TestForgottenPreviewRuleMatchesEnvAndTags(t *testing.T) {
	byEnv := asg("a", "web", 1, 4, 1, 4)
	byEnv.Env = "preview"
	byTag := asg("b", "web", 1, 4, 1, 4)
	byTag.Tags = map[string]string{"branch": "pr-511"}

	out := ForgottenPreviewRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{byEnv, byTag}})
	assert.Len(t, out, 2)
}

func TestOverProvisionedASGRule(t *testing.T) {
	g := asg("a", "workers", 1, 10, 6, 12)

	out := OverProvisionedASGRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{g}})
	require.Len(t, out, 1)

	d := out[0]
	// target = ceil(6 * 12 / 50) = 2; savings cover the 4 shed instances.
	assert.Equal(t, 2, d.Details.Extra["targetCapacity"])
	assert.InDelta(t, 4*29.952, d.PotentialSavings, 0.0001)
	// 75 base, +10 util<20, nothing for util<10.
	assert.Equal(t, 85, d.Confidence)
	assert.Equal(t, resource.ActionScaleDownASG, d.Action)
}

func TestOverProvisionedASGRuleRespectsMinSize(t *testing.T) {
	// target floors at min_size; savings collapse to zero and nothing fires.
	g := asg("a", "workers", 3, 10, 4, 29)
	out := OverProvisionedASGRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{g}})
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Details.Extra["targetCapacity"])

	atFloor := asg("b", "workers", 3, 10, 3, 5)
	out = OverProvisionedASGRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{atFloor}})
	assert.Empty(t, out)
}

func TestStaleFeatureEnvRule(t *testing.T) {
	stale := asg("a", "feat-checkout-v2", 1, 2, 1, 5)
	stale.CreatedAt = testNow.AddDate(0, 0, -20)
	young := asg("b", "feature-login", 1, 2, 1, 5)
	young.CreatedAt = testNow.AddDate(0, 0, -3)

	out := StaleFeatureEnvRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{stale, young}})
	require.Len(t, out, 1)
	// 85 base, +10 age>14.
	assert.Equal(t, 95, out[0].Confidence)
}

func TestStaticASGRule(t *testing.T) {
	pinned := asg("a", "api", 3, 3, 3, 50)
	scalable := asg("b", "api", 1, 6, 3, 50)
	single := asg("c", "api", 1, 1, 1, 50)

	out := StaticASGRule{}.Evaluate(testContext(), &Snapshot{ASGs: []resource.AutoscalingGroup{pinned, scalable, single}})
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, resource.ActionEnableASGScaling, d.Action)
	assert.Equal(t, ModeApproval, d.Mode)
	assert.InDelta(t, 0.3*d.MonthlyCost, d.PotentialSavings, 0.0001)
}
