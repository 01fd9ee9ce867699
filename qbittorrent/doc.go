// Package qbittorrent provides a client for the qBittorrent Web API v2,
// covering the surface a throttle controller needs: cookie login and the
// global transfer limit endpoints.
//
// The client owns its authentication session. A session is created on
// first use, shared by concurrent callers (a single login is ever in
// flight), proactively refreshed when a configured TTL passes, and
// invalidated as soon as the API answers 401 or 403, so the next call
// logs in fresh.
//
// # Usage
//
//	client, err := qbittorrent.NewClient(url, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	limits, err := client.TransferLimits(ctx)
//	if err == nil && limits.UploadBps != desired.UploadBps {
//	    err = client.SetTransferLimits(ctx, desired)
//	}
package qbittorrent
