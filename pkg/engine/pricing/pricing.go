// Package pricing is the pure pricing oracle: resource class in, dollars
// per month out. All lookups are deterministic table scans with documented
// fallbacks; nothing here touches the network or the store.
package pricing

import "math"

// HoursPerMonth is the billing month used throughout the engine.
const HoursPerMonth = 720

// Rates that are not per-class.
const (
	// FallbackHourlyRate covers instance types missing from the catalog.
	FallbackHourlyRate = 0.10

	// SnapshotRatePerGiB is the monthly snapshot storage rate.
	SnapshotRatePerGiB = 0.05

	// EIPHourlyRate is the charge for an unassociated address.
	EIPHourlyRate = 0.005

	// LambdaGBSecondRate is the GB-second compute rate.
	LambdaGBSecondRate = 0.0000166667

	// S3 monthly storage rates per GiB, by tier.
	S3StandardRatePerGiB = 0.023
	S3IARatePerGiB       = 0.0125
	S3GlacierRatePerGiB  = 0.004
)

// instanceHourly is the on-demand catalog.
var instanceHourly = map[string]float64{
	"t3.micro":   0.0104,
	"t3.small":   0.0208,
	"t3.medium":  0.0416,
	"t3.large":   0.0832,
	"t3.xlarge":  0.1664,
	"m5.large":   0.096,
	"m5.xlarge":  0.192,
	"m5.2xlarge": 0.384,
	"c5.large":   0.085,
	"c5.xlarge":  0.17,
	"r5.large":   0.126,
	"r5.xlarge":  0.252,
}

// rdsHourly is the managed database catalog.
var rdsHourly = map[string]float64{
	"db.t3.micro":  0.017,
	"db.t3.small":  0.034,
	"db.t3.medium": 0.068,
	"db.t3.large":  0.136,
	"db.t3.xlarge": 0.272,
	"db.m5.large":  0.171,
	"db.r5.large":  0.24,
}

// cacheHourly is the per-node cache catalog.
var cacheHourly = map[string]float64{
	"cache.t3.micro":  0.017,
	"cache.t3.small":  0.034,
	"cache.t3.medium": 0.068,
	"cache.m5.large":  0.156,
	"cache.r5.large":  0.216,
}

// volumeRatePerGiB is the monthly block storage rate. gp3 runs ~20%
// cheaper than gp2 at equal size.
var volumeRatePerGiB = map[string]float64{
	"gp2": 0.10,
	"gp3": 0.08,
	"io1": 0.125,
	"io2": 0.125,
	"st1": 0.045,
	"sc1": 0.015,
}

// downsizeLadder lists each family smallest-first; the recommended smaller
// sibling is one step down.
var downsizeLadder = map[string][]string{
	"t3": {"t3.micro", "t3.small", "t3.medium", "t3.large", "t3.xlarge"},
	"m5": {"m5.large", "m5.xlarge", "m5.2xlarge"},
	"c5": {"c5.large", "c5.xlarge"},
	"r5": {"r5.large", "r5.xlarge"},
}

// rdsDownsizeLadder is the fixed class ladder walked by downsize actions.
var rdsDownsizeLadder = []string{"db.t3.micro", "db.t3.small", "db.t3.medium", "db.t3.large", "db.t3.xlarge"}

// InstanceMonthlyCost returns the monthly on-demand cost of an instance
// type. Unknown types fall back to $0.10/h.
func InstanceMonthlyCost(instanceType string) float64 {
	rate, ok := instanceHourly[instanceType]
	if !ok {
		rate = FallbackHourlyRate
	}
	return Round4(rate * HoursPerMonth)
}

// RDSMonthlyCost returns the monthly cost of a database class. A Multi-AZ
// deployment runs a synchronous standby and bills double.
func RDSMonthlyCost(instanceClass string, multiAZ bool) float64 {
	rate, ok := rdsHourly[instanceClass]
	if !ok {
		rate = FallbackHourlyRate
	}
	if multiAZ {
		rate *= 2
	}
	return Round4(rate * HoursPerMonth)
}

// CacheMonthlyCost returns the monthly cost of a cache cluster.
func CacheMonthlyCost(nodeType string, numNodes int) float64 {
	rate, ok := cacheHourly[nodeType]
	if !ok {
		rate = FallbackHourlyRate
	}
	if numNodes < 1 {
		numNodes = 1
	}
	return Round4(rate * float64(numNodes) * HoursPerMonth)
}

// LBMonthlyCost returns the monthly cost of a load balancer with the given
// average LCU consumption.
func LBMonthlyCost(lbType string, lcu float64) float64 {
	hourly := 0.0225
	if lbType == "classic" {
		hourly = 0.025
	}
	return Round4((hourly + lcu*0.008) * HoursPerMonth)
}

// VolumeMonthlyCost returns the monthly cost of a block volume.
func VolumeMonthlyCost(volumeType string, sizeGiB int) float64 {
	rate, ok := volumeRatePerGiB[volumeType]
	if !ok {
		rate = volumeRatePerGiB["gp2"]
	}
	return Round4(rate * float64(sizeGiB))
}

// SnapshotMonthlyCost returns the monthly cost of snapshot storage.
func SnapshotMonthlyCost(sizeGiB int) float64 {
	return Round4(SnapshotRatePerGiB * float64(sizeGiB))
}

// UnattachedEIPMonthlyCost returns the monthly cost of holding an
// unassociated address.
func UnattachedEIPMonthlyCost() float64 {
	return Round4(EIPHourlyRate * HoursPerMonth)
}

// S3MonthlyCost returns the Standard-tier cost of the given occupancy.
func S3MonthlyCost(sizeGiB float64) float64 {
	return Round4(S3StandardRatePerGiB * sizeGiB)
}

// S3TieringSavings estimates the monthly savings of tiering Standard data
// under a 30/90-day rule: 35% of the data ages into IA and a further 35%
// into Glacier.
func S3TieringSavings(sizeGiB float64) float64 {
	iaShare := 0.35 * sizeGiB * (S3StandardRatePerGiB - S3IARatePerGiB)
	glacierShare := 0.35 * sizeGiB * (S3StandardRatePerGiB - S3GlacierRatePerGiB)
	return Round4(iaShare + glacierShare)
}

// LambdaMonthlyCost applies GB-second billing.
func LambdaMonthlyCost(memoryMB int, avgDurationMs float64, invocationsPerMonth float64) float64 {
	gbSeconds := float64(memoryMB) / 1024.0 * avgDurationMs / 1000.0 * invocationsPerMonth
	return Round4(gbSeconds * LambdaGBSecondRate)
}

// RecommendedSmallerInstance walks the family ladder one step down.
// Returns "" when the type is already the smallest or has no ladder.
func RecommendedSmallerInstance(instanceType string) string {
	for _, ladder := range downsizeLadder {
		for i, t := range ladder {
			if t == instanceType {
				if i == 0 {
					return ""
				}
				return ladder[i-1]
			}
		}
	}
	return ""
}

// DownsizedRDSClass walks the database class ladder one step down.
// Returns the input unchanged at the floor or off-ladder.
func DownsizedRDSClass(instanceClass string) string {
	for i, c := range rdsDownsizeLadder {
		if c == instanceClass {
			if i == 0 {
				return instanceClass
			}
			return rdsDownsizeLadder[i-1]
		}
	}
	return instanceClass
}

// Round4 truncates dollars to 4 decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
