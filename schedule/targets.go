package schedule

import "fmt"

// Targets is a pair of transfer caps in KiB/s. Zero means unlimited,
// matching the qBittorrent convention.
type Targets struct {
	UploadKiB   int64
	DownloadKiB int64
}

// Equal reports whether both caps match.
func (t Targets) Equal(o Targets) bool {
	return t.UploadKiB == o.UploadKiB && t.DownloadKiB == o.DownloadKiB
}

// TighterThan reports whether t is strictly more restrictive than o:
// at least one cap tightens and neither loosens. Moving a cap from
// unlimited to any finite value counts as tightening.
func (t Targets) TighterThan(o Targets) bool {
	upTighter := capTighter(t.UploadKiB, o.UploadKiB)
	upLooser := capTighter(o.UploadKiB, t.UploadKiB)
	downTighter := capTighter(t.DownloadKiB, o.DownloadKiB)
	downLooser := capTighter(o.DownloadKiB, t.DownloadKiB)

	return (upTighter || downTighter) && !upLooser && !downLooser
}

func (t Targets) String() string {
	return fmt.Sprintf("up=%s down=%s", formatCap(t.UploadKiB), formatCap(t.DownloadKiB))
}

func capTighter(new, old int64) bool {
	if old == 0 {
		return new > 0
	}
	return new > 0 && new < old
}

func formatCap(kib int64) string {
	if kib == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d KiB/s", kib)
}
