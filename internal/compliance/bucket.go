package compliance

// Bucket is a resolution class with its own bitrate thresholds.
type Bucket string

const (
	BucketLowRes Bucket = "low_res"
	Bucket720p   Bucket = "720p"
	Bucket1080p  Bucket = "1080p"
	Bucket1440p  Bucket = "1440p"
	Bucket4K     Bucket = "4k"
)

// Buckets lists every bucket from lowest to highest resolution.
var Buckets = []Bucket{BucketLowRes, Bucket720p, Bucket1080p, Bucket1440p, Bucket4K}

// BucketFor picks the resolution bucket. Width is checked first so that
// letterboxed and other non-16:9 sources land in the bucket of their width;
// height is only consulted when the width is below every threshold.
func BucketFor(width, height int) Bucket {
	switch {
	case width >= 3840:
		return Bucket4K
	case width >= 2560:
		return Bucket1440p
	case width >= 1900:
		return Bucket1080p
	case width >= 1200:
		return Bucket720p
	}
	switch {
	case height >= 2160:
		return Bucket4K
	case height >= 1440:
		return Bucket1440p
	case height >= 1080:
		return Bucket1080p
	case height >= 720:
		return Bucket720p
	}
	return BucketLowRes
}

// Label is the display name used in issue text.
func (b Bucket) Label() string {
	switch b {
	case BucketLowRes:
		return "low-res"
	case Bucket4K:
		return "4K"
	default:
		return string(b)
	}
}
