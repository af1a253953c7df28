package rpc

import (
	"context"
	"time"

	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/driftmirror"
)

// dispatch implements the single tagged Request/Response dispatch of spec
// §6.1 against coord. SubscribeRequest is handled separately by the server
// (it opens a stream rather than returning one Response) and never reaches
// here.
func dispatch(ctx context.Context, coord *coordinator.Coordinator, req Request) Response {
	switch r := req.(type) {
	case MountRequest:
		err := coord.Mount(ctx, r.Pair)
		return MountResponse{Error: errorInfoFor(err)}

	case UnmountRequest:
		err := coord.Unmount(r.SyncPairID)
		return UnmountResponse{Error: errorInfoFor(err)}

	case UnmountAllRequest:
		err := coord.UnmountAll()
		return UnmountAllResponse{Error: errorInfoFor(err)}

	case GetMountStatusRequest:
		return GetMountStatusResponse{Mounted: coord.GetMountStatus(r.SyncPairID)}

	case GetAllMountsRequest:
		return GetAllMountsResponse{Mounts: coord.GetAllMounts()}

	case GetFileStatusRequest:
		entry, err := coord.GetFileStatus(r.SyncPairID, r.VirtualPath)
		return GetFileStatusResponse{Entry: entry, Error: errorInfoFor(err)}

	case UpdateExternalPathRequest:
		err := coord.UpdateExternalPath(r.SyncPairID, r.NewPath)
		return UpdateExternalPathResponse{Error: errorInfoFor(err)}

	case SetExternalOfflineRequest:
		err := coord.SetExternalOffline(r.SyncPairID, r.Offline)
		return SetExternalOfflineResponse{Error: errorInfoFor(err)}

	case SetReadOnlyRequest:
		err := coord.SetReadOnly(r.SyncPairID, r.ReadOnly)
		return SetReadOnlyResponse{Error: errorInfoFor(err)}

	case RebuildIndexRequest:
		err := coord.RebuildIndex(ctx, r.SyncPairID)
		return RebuildIndexResponse{Error: errorInfoFor(err)}

	case GetIndexStatsRequest:
		stats, err := coord.GetIndexStats(r.SyncPairID)
		return GetIndexStatsResponse{Stats: stats, Error: errorInfoFor(err)}

	case SyncNowRequest:
		err := coord.SyncNow(ctx, r.SyncPairID)
		return SyncNowResponse{Error: errorInfoFor(err)}

	case SyncAllRequest:
		err := coord.SyncAll(ctx)
		return SyncAllResponse{Error: errorInfoFor(err)}

	case SyncFileRequest:
		err := coord.SyncFile(ctx, r.SyncPairID, r.VirtualPath)
		return SyncFileResponse{Error: errorInfoFor(err)}

	case PauseSyncRequest:
		err := coord.PauseSync(r.SyncPairID)
		return PauseSyncResponse{Error: errorInfoFor(err)}

	case ResumeSyncRequest:
		err := coord.ResumeSync(r.SyncPairID)
		return ResumeSyncResponse{Error: errorInfoFor(err)}

	case CancelSyncRequest:
		err := coord.CancelSync(r.SyncPairID)
		return CancelSyncResponse{Error: errorInfoFor(err)}

	case GetSyncStatusRequest:
		status, err := coord.GetSyncStatus(r.SyncPairID)
		return GetSyncStatusResponse{Status: status, Error: errorInfoFor(err)}

	case GetAllSyncStatusRequest:
		return GetAllSyncStatusResponse{Statuses: coord.GetAllSyncStatus()}

	case GetPendingQueueRequest:
		entries, err := coord.GetPendingQueue(r.SyncPairID)
		return GetPendingQueueResponse{Entries: entries, Error: errorInfoFor(err)}

	case GetSyncProgressRequest:
		return dispatchGetSyncProgress(ctx, coord, r)

	case GetSyncHistoryRequest:
		history, err := coord.GetSyncHistory(ctx, r.SyncPairID, r.Limit)
		return GetSyncHistoryResponse{History: history, Error: errorInfoFor(err)}

	case GetSyncStatisticsRequest:
		stats, err := coord.GetSyncStatistics(ctx, r.SyncPairID, r.StartDate, r.EndDate)
		return GetSyncStatisticsResponse{Statistics: stats, Error: errorInfoFor(err)}

	case GetDirtyFilesRequest:
		entries, err := coord.GetDirtyFiles(r.SyncPairID)
		return GetDirtyFilesResponse{Entries: entries, Error: errorInfoFor(err)}

	case MarkFileDirtyRequest:
		err := coord.MarkFileDirty(r.SyncPairID, r.VirtualPath)
		return MarkFileDirtyResponse{Error: errorInfoFor(err)}

	case ClearFileDirtyRequest:
		err := coord.ClearFileDirty(r.SyncPairID, r.VirtualPath)
		return ClearFileDirtyResponse{Error: errorInfoFor(err)}

	case AddDiskRequest:
		doc, err := coord.AddDisk(coord.GetConfig(), r.Disk)
		return AddDiskResponse{Config: doc, Error: errorInfoFor(err)}

	case AddSyncPairRequest:
		doc, err := coord.AddSyncPair(coord.GetConfig(), r.Pair)
		return AddSyncPairResponse{Config: doc, Error: errorInfoFor(err)}

	case GetConfigRequest:
		return GetConfigResponse{Config: coord.GetConfig()}

	case UpdateConfigRequest:
		err := coord.UpdateConfig(ctx, r.Config)
		return UpdateConfigResponse{Error: errorInfoFor(err)}

	case PrepareForShutdownRequest:
		coord.PrepareForShutdown()
		return PrepareForShutdownResponse{}

	case GetVersionRequest:
		return GetVersionResponse{
			Major:   driftmirror.VersionMajor,
			Minor:   driftmirror.VersionMinor,
			Patch:   driftmirror.VersionPatch,
			Version: driftmirror.Version,
		}

	case HealthCheckRequest:
		return HealthCheckResponse{Healthy: true}

	default:
		return nil
	}
}

// dispatchGetSyncProgress implements spec §6.1's long-poll semantics for
// "getSyncProgress": it blocks on the SyncEngine's Tracker until an index
// newer than PreviousIndex is observed, the connection's deadline elapses,
// or the context is cancelled, wiring pkg/syncengine.Engine.Tracker() into
// the RPC surface per spec §5.
func dispatchGetSyncProgress(ctx context.Context, coord *coordinator.Coordinator, r GetSyncProgressRequest) Response {
	tracker := coord.Engine().Tracker()

	waitCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		waitCtx, cancel = context.WithTimeout(ctx, longPollTimeout)
		defer cancel()
	}

	index, err := tracker.WaitForChange(waitCtx, r.PreviousIndex)
	if err != nil {
		// A context deadline or cancellation here just means "nothing new
		// yet"; report the last known index rather than an error so
		// long-polling clients can loop without special-casing timeouts.
		return GetSyncProgressResponse{Index: index}
	}
	return GetSyncProgressResponse{Index: index}
}

// longPollTimeout bounds GetSyncProgress's long-poll so a client that never
// calls back doesn't hold a server Goroutine forever.
const longPollTimeout = 30 * time.Second
