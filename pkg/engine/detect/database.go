package detect

import (
	"github.com/wastelens/wastelens/pkg/engine/pricing"
	"github.com/wastelens/wastelens/pkg/resource"
)

// IdleRDSRule flags available databases with low CPU or near-zero
// connection counts. Non-prod gets looser thresholds; the null-metric
// branch is gated by TreatMissingMetricsAsIdle.
type IdleRDSRule struct{}

func (IdleRDSRule) ID() string { return ScenarioIdleRDS }

func (IdleRDSRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, db := range snap.RDSInstances {
		if db.State != "available" {
			continue
		}

		cpu, conn := db.AvgCPU7d, db.AvgConnections7d
		idle := false
		switch {
		case cpu != nil && *cpu < 15:
			idle = true
		case conn != nil && *conn <= 1:
			idle = true
		case !isProd(db.Env) && cpu != nil && conn != nil && *cpu < 25 && *conn < 5:
			idle = true
		case cpu == nil && conn == nil && rc.TreatMissingMetricsAsIdle:
			idle = true
		}
		if !idle {
			continue
		}

		conf := 75
		if cpu != nil && *cpu < 1 {
			conf += 10
		}
		if conn != nil && *conn == 0 {
			conf += 10
		}

		monthly := pricing.RDSMonthlyCost(db.InstanceClass, db.MultiAZ)
		out = append(out, newDetection(db.Meta, resource.TableRDSInstances, db.DBInstanceID,
			ScenarioIdleRDS, resource.ActionStopRDS, ModeApproval, conf,
			monthly, 0.8*monthly,
			extra("instanceClass", db.InstanceClass, "engine", db.Engine), rc.Now))
	}
	return out
}

// MultiAZNonProdRule flags standby replicas on non-production databases.
// Dropping the standby halves the bill.
type MultiAZNonProdRule struct{}

func (MultiAZNonProdRule) ID() string { return ScenarioMultiAZNonProd }

func (MultiAZNonProdRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, db := range snap.RDSInstances {
		if !db.MultiAZ || !nonProdEnvs[db.Env] {
			continue
		}

		monthly := pricing.RDSMonthlyCost(db.InstanceClass, true)
		out = append(out, newDetection(db.Meta, resource.TableRDSInstances, db.DBInstanceID,
			ScenarioMultiAZNonProd, resource.ActionDisableMultiAZ, ModeAutoSafe, 90,
			monthly, 0.5*monthly,
			extra("instanceClass", db.InstanceClass, "env", db.Env), rc.Now))
	}
	return out
}

// IdleCacheRule flags cache clusters nobody connects to.
type IdleCacheRule struct{}

func (IdleCacheRule) ID() string { return ScenarioIdleCache }

func (IdleCacheRule) Evaluate(rc Context, snap *Snapshot) []Detection {
	var out []Detection
	for _, cc := range snap.CacheClusters {
		cpu, conn := cc.AvgCPU7d, cc.AvgConnections7d
		idle := false
		switch {
		case cpu != nil && *cpu < 15:
			idle = true
		case conn != nil && *conn <= 3:
			idle = true
		case !isProd(cc.Env) && cpu != nil && conn != nil && *cpu < 25 && *conn < 10:
			idle = true
		case cpu == nil && conn == nil && rc.TreatMissingMetricsAsIdle:
			idle = true
		}
		if !idle {
			continue
		}

		conf := 70
		if cpu != nil && *cpu < 1 {
			conf += 15
		}
		if conn != nil && *conn == 0 {
			conf += 10
		}

		monthly := pricing.CacheMonthlyCost(cc.NodeType, cc.NumNodes)
		out = append(out, newDetection(cc.Meta, resource.TableCacheClusters, cc.ClusterID,
			ScenarioIdleCache, resource.ActionDeleteCache, ModeApproval, conf,
			monthly, monthly,
			extra("nodeType", cc.NodeType, "numNodes", cc.NumNodes), rc.Now))
	}
	return out
}
