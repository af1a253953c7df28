package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ChecksumFile computes the sha256 content hash of path, used both by the
// optional Checksum phase (spec §4.5 step 3) to refine quick-compare-
// inconclusive actions and by the Verify phase (step 6) to confirm a
// transferred file's integrity.
func ChecksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to open file for checksum")
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", errors.Wrap(err, "unable to read file for checksum")
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// refineWithChecksums implements spec §4.5 step 3: for each Update action
// whose quick-compare was inconclusive, compute both sides' content hashes
// and drop the action if they match (the files are actually identical),
// keeping it otherwise.
func refineWithChecksums(actions []PlanAction) ([]PlanAction, error) {
	refined := make([]PlanAction, 0, len(actions))
	for _, action := range actions {
		if action.Kind != ActionUpdate {
			refined = append(refined, action)
			continue
		}

		sourceSum, err := ChecksumFile(action.SourcePath)
		if err != nil {
			return nil, err
		}
		destSum, err := ChecksumFile(action.DestinationPath)
		if err != nil {
			return nil, err
		}
		if sourceSum == destSum {
			continue
		}
		refined = append(refined, action)
	}
	return refined, nil
}
