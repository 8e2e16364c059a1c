package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// UnattachedVolumeRule flags available volumes. Detached storage bills at
// full rate with no reader.
type UnattachedVolumeRule struct{}

func (UnattachedVolumeRule) ID() string { return ScenarioUnattachedVolume }

func (UnattachedVolumeRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, v := range snap.Volumes {
		if v.State != resource.VolumeAvailable {
			continue
		}

		conf := 85
		if ageDays(v.CreatedAt, rc.Now) > 30 {
			conf += 10
		}

		monthly := pricing.VolumeMonthlyCost(v.VolumeType, v.SizeGiB)
		out = append(out, newDetection(v.Meta, resource.TableVolumes, v.VolumeID,
			ScenarioUnattachedVolume, resource.ActionDeleteVolume, ModeAutoSafe, conf,
			monthly, monthly,
			extra("volumeType", v.VolumeType, "sizeGib", v.SizeGiB), rc.Now))
	}
	return out
}

// GP2VolumeRule flags gp2 volumes still in service; gp3 is the same
// storage at a lower rate and the migration is online.
type GP2VolumeRule struct{}

func (GP2VolumeRule) ID() string { return ScenarioGP2Volume }

func (GP2VolumeRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, v := range snap.Volumes {
		if v.VolumeType != "gp2" || v.State == resource.VolumeDeleted {
			continue
		}

		cost := pricing.VolumeMonthlyCost("gp2", v.SizeGiB)
		savings := cost - pricing.VolumeMonthlyCost("gp3", v.SizeGiB)
		out = append(out, newDetection(v.Meta, resource.TableVolumes, v.VolumeID,
			ScenarioGP2Volume, resource.ActionUpgradeVolumeType, ModeAutoSafe, 95,
			cost, savings,
			extra("sizeGib", v.SizeGiB), rc.Now))
	}
	return out
}

// OldSnapshotRule flags snapshots older than 90 days.
type OldSnapshotRule struct{}

func (OldSnapshotRule) ID() string { return ScenarioOldSnapshot }

func (OldSnapshotRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, s := range snap.Snapshots {
		age := ageDays(s.CreatedAt, rc.Now)
		if age <= 90 {
			continue
		}

		conf := 70
		if age > 180 {
			conf += 15
		}
		if age > 365 {
			conf += 10
		}

		monthly := pricing.SnapshotMonthlyCost(s.SizeGiB)
		out = append(out, newDetection(s.Meta, resource.TableSnapshots, s.SnapshotID,
			ScenarioOldSnapshot, resource.ActionDeleteSnapshot, ModeAutoSafe, conf,
			monthly, monthly,
			extra("ageDays", int(age), "sizeGib", s.SizeGiB), rc.Now))
	}
	return out
}

// OrphanedSnapshotRule flags snapshots whose source volume is gone.
type OrphanedSnapshotRule struct{}

func (OrphanedSnapshotRule) ID() string { return ScenarioOrphanedSnapshot }

func (OrphanedSnapshotRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, s := range snap.Snapshots {
		if s.SourceVolumeID == nil || *s.SourceVolumeID == "" {
			continue
		}
		v, found := snap.VolumeByID(*s.SourceVolumeID)
		if found && v.State != resource.VolumeDeleted {
			continue
		}

		monthly := pricing.SnapshotMonthlyCost(s.SizeGiB)
		out = append(out, newDetection(s.Meta, resource.TableSnapshots, s.SnapshotID,
			ScenarioOrphanedSnapshot, resource.ActionDeleteOrphanedSnapshot, ModeAutoSafe, 85,
			monthly, monthly,
			extra("sourceVolumeId", *s.SourceVolumeID), rc.Now))
	}
	return out
}

// assumedBucketGiB stands in for real bucket inventory, which the
// simulated provider does not expose per object.
const assumedBucketGiB = 100

// S3NoLifecycleRule flags buckets with no lifecycle configuration at all.
type S3NoLifecycleRule struct{}

func (S3NoLifecycleRule) ID() string { return ScenarioS3NoLifecycle }

func (S3NoLifecycleRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, b := range snap.S3Buckets {
		if len(b.LifecycleRules) > 0 {
			continue
		}

		cost := pricing.S3MonthlyCost(assumedBucketGiB)
		savings := pricing.S3TieringSavings(assumedBucketGiB)
		out = append(out, newDetection(b.Meta, resource.TableS3Buckets, b.Name,
			ScenarioS3NoLifecycle, resource.ActionAddLifecyclePolicy, ModeAutoSafe, 90,
			cost, savings,
			extra("assumedSizeGib", assumedBucketGiB), rc.Now))
	}
	return out
}

// S3NoVersionExpirationRule flags versioned buckets that never expire
// noncurrent versions. Old versions accumulate without bound.
type S3NoVersionExpirationRule struct{}

func (S3NoVersionExpirationRule) ID() string { return ScenarioS3NoVersionExpiration }

func (S3NoVersionExpirationRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, b := range snap.S3Buckets {
		if !b.VersioningEnabled {
			continue
		}
		hasExpiration := false
		for _, r := range b.LifecycleRules {
			if r.NoncurrentVersionExpiration != nil {
				hasExpiration = true
				break
			}
		}
		if hasExpiration {
			continue
		}

		cost := pricing.Round4(1.15)
		out = append(out, newDetection(b.Meta, resource.TableS3Buckets, b.Name,
			ScenarioS3NoVersionExpiration, resource.ActionAddVersionExpiration, ModeAutoSafe, 85,
			cost, 0.7*cost,
			extra("lifecycleRuleCount", len(b.LifecycleRules)), rc.Now))
	}
	return out
}

// LogNoRetentionRule flags log groups retaining forever. Fires only when
// both retention fields are unset; either one counts as configured.
type LogNoRetentionRule struct{}

func (LogNoRetentionRule) ID() string { return ScenarioLogNoRetention }

func (LogNoRetentionRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, lg := range snap.LogGroups {
		if lg.RetentionDays != nil || lg.RetentionInDays != nil {
			continue
		}

		cost := 0.30
		out = append(out, newDetection(lg.Meta, resource.TableLogGroups, lg.Name,
			ScenarioLogNoRetention, resource.ActionSetRetention, ModeAutoSafe, 90,
			cost, 0.9*cost,
			Details{}, rc.Now))
	}
	return out
}
