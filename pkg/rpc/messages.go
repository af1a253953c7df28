// Package rpc implements the daemon's external interface (spec §6.1): a
// tagged Request/Response protocol framed over pkg/daemon's IPC transport,
// dispatching each of the daemon's 33 named operations against a
// pkg/coordinator.Coordinator, plus a streaming Subscribe for the
// syncProgress/syncStatusChanged/indexReady/configUpdated/stateChanged
// events of spec §6.
package rpc

import (
	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/store"
)

// Request is implemented by every request payload accepted over the daemon
// IPC connection.
type Request interface{ isRequest() }

// Response is implemented by every response payload returned over the
// daemon IPC connection.
type Response interface{ isResponse() }

// ErrorInfo carries a structured error across the IPC boundary, per spec
// §7's "RPC callers receive structured error envelopes; no stack traces
// cross the boundary". Every Response whose operation can fail carries one
// in its Error field, nil on success.
type ErrorInfo struct {
	Code    string
	Message string
}

func errorInfoFor(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Code: string(dmerrors.CodeOf(err)), Message: err.Error()}
}

// AsError reconstructs a plain error from an ErrorInfo that crossed the IPC
// boundary, for use by CLI callers turning a Response.Error back into a Go
// error. The original dmerrors.Code is preserved in the message so CLI
// output can still surface it, but the reconstructed value is not itself a
// dmerrors.Error (the two processes don't share that type's identity across
// gob).
func (e *ErrorInfo) AsError() error {
	if e == nil {
		return nil
	}
	return &remoteError{code: e.Code, message: e.Message}
}

type remoteError struct {
	code    string
	message string
}

func (e *remoteError) Error() string {
	if e.code == "" {
		return e.message
	}
	return e.code + ": " + e.message
}

// base is embedded by every request/response struct so the marker methods
// only need to be declared once per direction.
type requestBase struct{}

func (requestBase) isRequest() {}

type responseBase struct{}

func (responseBase) isResponse() {}

// --- Mount / Unmount -------------------------------------------------------

type MountRequest struct {
	requestBase
	Pair config.SyncPair
}
type MountResponse struct {
	responseBase
	Error *ErrorInfo
}

type UnmountRequest struct {
	requestBase
	SyncPairID string
}
type UnmountResponse struct {
	responseBase
	Error *ErrorInfo
}

type UnmountAllRequest struct{ requestBase }
type UnmountAllResponse struct {
	responseBase
	Error *ErrorInfo
}

type GetMountStatusRequest struct {
	requestBase
	SyncPairID string
}
type GetMountStatusResponse struct {
	responseBase
	Mounted bool
}

type GetAllMountsRequest struct{ requestBase }
type GetAllMountsResponse struct {
	responseBase
	Mounts []coordinator.MountInfo
}

type GetFileStatusRequest struct {
	requestBase
	SyncPairID  string
	VirtualPath string
}
type GetFileStatusResponse struct {
	responseBase
	Entry *store.FileEntry
	Error *ErrorInfo
}

type UpdateExternalPathRequest struct {
	requestBase
	SyncPairID string
	NewPath    string
}
type UpdateExternalPathResponse struct {
	responseBase
	Error *ErrorInfo
}

type SetExternalOfflineRequest struct {
	requestBase
	SyncPairID string
	Offline    bool
}
type SetExternalOfflineResponse struct {
	responseBase
	Error *ErrorInfo
}

type SetReadOnlyRequest struct {
	requestBase
	SyncPairID string
	ReadOnly   bool
}
type SetReadOnlyResponse struct {
	responseBase
	Error *ErrorInfo
}

// --- Indexing ----------------------------------------------------------

type RebuildIndexRequest struct {
	requestBase
	SyncPairID string
}
type RebuildIndexResponse struct {
	responseBase
	Error *ErrorInfo
}

type GetIndexStatsRequest struct {
	requestBase
	SyncPairID string
}
type GetIndexStatsResponse struct {
	responseBase
	Stats *coordinator.IndexStats
	Error *ErrorInfo
}

// --- Sync scheduling -----------------------------------------------------

type SyncNowRequest struct {
	requestBase
	SyncPairID string
}
type SyncNowResponse struct {
	responseBase
	Error *ErrorInfo
}

type SyncAllRequest struct{ requestBase }
type SyncAllResponse struct {
	responseBase
	Error *ErrorInfo
}

type SyncFileRequest struct {
	requestBase
	SyncPairID  string
	VirtualPath string
}
type SyncFileResponse struct {
	responseBase
	Error *ErrorInfo
}

type PauseSyncRequest struct {
	requestBase
	SyncPairID string
}
type PauseSyncResponse struct {
	responseBase
	Error *ErrorInfo
}

type ResumeSyncRequest struct {
	requestBase
	SyncPairID string
}
type ResumeSyncResponse struct {
	responseBase
	Error *ErrorInfo
}

type CancelSyncRequest struct {
	requestBase
	SyncPairID string
}
type CancelSyncResponse struct {
	responseBase
	Error *ErrorInfo
}

type GetSyncStatusRequest struct {
	requestBase
	SyncPairID string
}
type GetSyncStatusResponse struct {
	responseBase
	Status *coordinator.MountInfo
	Error  *ErrorInfo
}

type GetAllSyncStatusRequest struct{ requestBase }
type GetAllSyncStatusResponse struct {
	responseBase
	Statuses []coordinator.MountInfo
}

type GetPendingQueueRequest struct {
	requestBase
	SyncPairID string
}
type GetPendingQueueResponse struct {
	responseBase
	Entries []*store.FileEntry
	Error   *ErrorInfo
}

// GetSyncProgressRequest implements the long-poll query of spec §6.1's
// "getSyncProgress": the caller supplies the index it last observed and the
// daemon blocks (via pkg/state.Tracker.WaitForChange) until a newer index is
// available or the request's deadline elapses.
type GetSyncProgressRequest struct {
	requestBase
	SyncPairID    string
	PreviousIndex uint64
}
type GetSyncProgressResponse struct {
	responseBase
	Index uint64
	Error *ErrorInfo
}

type GetSyncHistoryRequest struct {
	requestBase
	SyncPairID string
	Limit      int
}
type GetSyncHistoryResponse struct {
	responseBase
	History []*store.SyncHistory
	Error   *ErrorInfo
}

type GetSyncStatisticsRequest struct {
	requestBase
	SyncPairID string
	StartDate  string
	EndDate    string
}
type GetSyncStatisticsResponse struct {
	responseBase
	Statistics []*store.SyncStatistics
	Error      *ErrorInfo
}

type GetDirtyFilesRequest struct {
	requestBase
	SyncPairID string
}
type GetDirtyFilesResponse struct {
	responseBase
	Entries []*store.FileEntry
	Error   *ErrorInfo
}

type MarkFileDirtyRequest struct {
	requestBase
	SyncPairID  string
	VirtualPath string
}
type MarkFileDirtyResponse struct {
	responseBase
	Error *ErrorInfo
}

type ClearFileDirtyRequest struct {
	requestBase
	SyncPairID  string
	VirtualPath string
}
type ClearFileDirtyResponse struct {
	responseBase
	Error *ErrorInfo
}

// --- Configuration ---------------------------------------------------------

type AddDiskRequest struct {
	requestBase
	Disk config.Disk
}
type AddDiskResponse struct {
	responseBase
	Config *config.Document
	Error  *ErrorInfo
}

type AddSyncPairRequest struct {
	requestBase
	Pair config.SyncPair
}
type AddSyncPairResponse struct {
	responseBase
	Config *config.Document
	Error  *ErrorInfo
}

type GetConfigRequest struct{ requestBase }
type GetConfigResponse struct {
	responseBase
	Config *config.Document
}

type UpdateConfigRequest struct {
	requestBase
	Config *config.Document
}
type UpdateConfigResponse struct {
	responseBase
	Error *ErrorInfo
}

// --- Lifecycle ---------------------------------------------------------

type PrepareForShutdownRequest struct{ requestBase }
type PrepareForShutdownResponse struct{ responseBase }

type GetVersionRequest struct{ requestBase }
type GetVersionResponse struct {
	responseBase
	Major   int
	Minor   int
	Patch   int
	Version string
}

type HealthCheckRequest struct{ requestBase }
type HealthCheckResponse struct {
	responseBase
	Healthy bool
}

// --- Streaming events ------------------------------------------------------

// SubscribeRequest opens a long-lived event stream on its connection; the
// server never sends a matching Response, only a sequence of
// coordinator.Event values until the connection is closed.
type SubscribeRequest struct{ requestBase }
