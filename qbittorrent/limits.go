package qbittorrent

import "fmt"

// TransferLimits holds the client's global transfer caps in bytes/s, the
// Web API's wire unit. Zero means unlimited.
type TransferLimits struct {
	UploadBps   int64
	DownloadBps int64
}

// FromKiB converts KiB/s caps (the unit the qBittorrent UI and our config
// speak) to wire limits. Zero stays zero.
func FromKiB(uploadKiB, downloadKiB int64) TransferLimits {
	return TransferLimits{
		UploadBps:   uploadKiB * 1024,
		DownloadBps: downloadKiB * 1024,
	}
}

// Equal reports whether both limits match.
func (l TransferLimits) Equal(o TransferLimits) bool {
	return l.UploadBps == o.UploadBps && l.DownloadBps == o.DownloadBps
}

func (l TransferLimits) String() string {
	return fmt.Sprintf("up=%s down=%s", formatLimit(l.UploadBps), formatLimit(l.DownloadBps))
}

func formatLimit(bps int64) string {
	if bps == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d B/s", bps)
}
