package deps

import (
	"context"
	"fmt"

	"librarian/internal/encoding"
)

// EncoderCandidates are the ffmpeg encoders librarian can drive, software first.
var EncoderCandidates = []struct {
	Codec  string
	Family string
}{
	{"libx265", encoding.FamilyHEVC},
	{"libsvtav1", encoding.FamilyAV1},
	{"hevc_nvenc", encoding.FamilyHEVC},
	{"hevc_qsv", encoding.FamilyHEVC},
	{"hevc_vaapi", encoding.FamilyHEVC},
	{"hevc_videotoolbox", encoding.FamilyHEVC},
	{"av1_nvenc", encoding.FamilyAV1},
	{"av1_qsv", encoding.FamilyAV1},
	{"av1_vaapi", encoding.FamilyAV1},
}

// CheckEncoders reports which candidate encoders the ffmpeg build exposes.
// A GPU encoder that is missing is optional; a missing software encoder is not.
func CheckEncoders(ctx context.Context, caps encoding.Capabilities) []Status {
	results := make([]Status, 0, len(EncoderCandidates))
	for _, candidate := range EncoderCandidates {
		gpu := encoding.IsGPUCodec(candidate.Codec)
		status := Status{
			Name:     candidate.Codec,
			Command:  candidate.Codec,
			Optional: gpu,
		}
		if gpu {
			status.Description = fmt.Sprintf("GPU %s encoder", candidate.Family)
		} else {
			status.Description = fmt.Sprintf("Software %s encoder", candidate.Family)
		}
		ok, err := caps.HasEncoder(ctx, candidate.Codec)
		switch {
		case err != nil:
			status.Detail = err.Error()
		case ok:
			status.Available = true
		default:
			status.Detail = "not compiled into this ffmpeg build"
			if fallback := encoding.SoftwareFallback(candidate.Codec, candidate.Family); gpu && fallback != candidate.Codec {
				status.Detail += fmt.Sprintf("; falls back to %s", fallback)
			}
		}
		results = append(results, status)
	}
	return results
}
