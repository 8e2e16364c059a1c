package detect

import (
	"context"
	"sync"

	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Snapshot is the batch-fetched inventory the rules evaluate against.
// Rules never query the store; every table is pre-fetched in one fan-out.
type Snapshot struct {
	Instances       []resource.Instance
	ASGs            []resource.AutoscalingGroup
	RDSInstances    []resource.RDSInstance
	CacheClusters   []resource.CacheCluster
	LoadBalancers   []resource.LoadBalancer
	LambdaFunctions []resource.LambdaFunction
	Volumes         []resource.Volume
	Snapshots       []resource.Snapshot
	S3Buckets       []resource.S3Bucket
	LogGroups       []resource.LogGroup
	ElasticIPs      []resource.ElasticIP
}

// ResourceCounts returns the per-table row counts.
func (s *Snapshot) ResourceCounts() map[string]int {
	return map[string]int{
		resource.TableInstances:         len(s.Instances),
		resource.TableAutoscalingGroups: len(s.ASGs),
		resource.TableRDSInstances:      len(s.RDSInstances),
		resource.TableCacheClusters:     len(s.CacheClusters),
		resource.TableLoadBalancers:     len(s.LoadBalancers),
		resource.TableLambdaFunctions:   len(s.LambdaFunctions),
		resource.TableVolumes:           len(s.Volumes),
		resource.TableSnapshots:         len(s.Snapshots),
		resource.TableS3Buckets:         len(s.S3Buckets),
		resource.TableLogGroups:         len(s.LogGroups),
		resource.TableElasticIPs:        len(s.ElasticIPs),
	}
}

// VolumeByID finds a volume by its natural id.
func (s *Snapshot) VolumeByID(volumeID string) (resource.Volume, bool) {
	for _, v := range s.Volumes {
		if v.VolumeID == volumeID {
			return v, true
		}
	}
	return resource.Volume{}, false
}

// fetchSnapshot fans out one concurrent read per table and waits for all.
// A cancelled context aborts the whole snapshot; no partial results leak.
func fetchSnapshot(ctx context.Context, st store.Store) (*Snapshot, error) {
	snap := &Snapshot{}

	var wg sync.WaitGroup
	errs := make(chan error, len(resource.ResourceTables))

	fetch := func(load func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := load(); err != nil {
				errs <- err
			}
		}()
	}

	fetch(func() (err error) { snap.Instances, err = store.All[resource.Instance](ctx, st); return })
	fetch(func() (err error) { snap.ASGs, err = store.All[resource.AutoscalingGroup](ctx, st); return })
	fetch(func() (err error) { snap.RDSInstances, err = store.All[resource.RDSInstance](ctx, st); return })
	fetch(func() (err error) { snap.CacheClusters, err = store.All[resource.CacheCluster](ctx, st); return })
	fetch(func() (err error) { snap.LoadBalancers, err = store.All[resource.LoadBalancer](ctx, st); return })
	fetch(func() (err error) { snap.LambdaFunctions, err = store.All[resource.LambdaFunction](ctx, st); return })
	fetch(func() (err error) { snap.Volumes, err = store.All[resource.Volume](ctx, st); return })
	fetch(func() (err error) { snap.Snapshots, err = store.All[resource.Snapshot](ctx, st); return })
	fetch(func() (err error) { snap.S3Buckets, err = store.All[resource.S3Bucket](ctx, st); return })
	fetch(func() (err error) { snap.LogGroups, err = store.All[resource.LogGroup](ctx, st); return })
	fetch(func() (err error) { snap.ElasticIPs, err = store.All[resource.ElasticIP](ctx, st); return })

	wg.Wait()
	close(errs)

	for err := range errs {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}
