package fileshare

const (
	bytesPerMB = 1_000_000
	mbPerGB    = 1000
	// defaultQuota stands in for a share that reports no quota. It makes the
	// percentage meaningless for such shares; kept for continuity of the metric.
	defaultQuota = 1
)

// ShareUsage is the space figure reported for one file share.
type ShareUsage struct {
	UsageMB int64
	QuotaMB int64
	Percent float64
}

// Usage converts the raw share statistics into megabytes and a used
// percentage. Usage truncates to whole MB; quota is in GiB as returned by
// the storage API and is scaled by 1000.
func Usage(usageBytes *int64, quota *int32) ShareUsage {
	var usage int64
	if usageBytes != nil {
		usage = *usageBytes / bytesPerMB
	}
	q := int64(defaultQuota)
	if quota != nil {
		q = int64(*quota)
	}
	quotaMB := q * mbPerGB
	return ShareUsage{
		UsageMB: usage,
		QuotaMB: quotaMB,
		Percent: float64(usage) / float64(quotaMB) * 100,
	}
}
