package syncengine

import (
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
)

// VerifyResult records the outcome of re-checksumming one transferred file
// during the Verify phase (spec §4.5 step 6).
type VerifyResult struct {
	VirtualPath string
	Err         error
}

// Verify implements spec §4.5 step 6: for each successfully transferred
// action, recompute the destination checksum and compare it against a
// checksum freshly computed from the source file, surfacing a
// ChecksumMismatch error on disagreement.
func Verify(succeeded []PlanAction) []VerifyResult {
	var results []VerifyResult
	for _, action := range succeeded {
		if action.Kind != ActionCopy && action.Kind != ActionUpdate {
			continue
		}

		sourceChecksum, err := ChecksumFile(action.SourcePath)
		if err != nil {
			results = append(results, VerifyResult{VirtualPath: action.VirtualPath, Err: err})
			continue
		}
		destChecksum, err := ChecksumFile(action.DestinationPath)
		if err != nil {
			results = append(results, VerifyResult{VirtualPath: action.VirtualPath, Err: err})
			continue
		}
		if sourceChecksum != destChecksum {
			results = append(results, VerifyResult{
				VirtualPath: action.VirtualPath,
				Err: dmerrors.New(dmerrors.CodeChecksumMismatch, "destination checksum does not match source").
					With("virtualPath", action.VirtualPath),
			})
		}
	}
	return results
}
