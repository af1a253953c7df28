package rpc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/driftmirror/driftmirror/pkg/daemon"
)

// envelope carries a single Request, Response, or coordinator.Event across
// the wire. gob requires every concrete type that can appear in an
// interface-typed field to be registered (see init below).
type envelope struct {
	Payload interface{}
}

func init() {
	for _, v := range []interface{}{
		MountRequest{}, MountResponse{},
		UnmountRequest{}, UnmountResponse{},
		UnmountAllRequest{}, UnmountAllResponse{},
		GetMountStatusRequest{}, GetMountStatusResponse{},
		GetAllMountsRequest{}, GetAllMountsResponse{},
		GetFileStatusRequest{}, GetFileStatusResponse{},
		UpdateExternalPathRequest{}, UpdateExternalPathResponse{},
		SetExternalOfflineRequest{}, SetExternalOfflineResponse{},
		SetReadOnlyRequest{}, SetReadOnlyResponse{},
		RebuildIndexRequest{}, RebuildIndexResponse{},
		GetIndexStatsRequest{}, GetIndexStatsResponse{},
		SyncNowRequest{}, SyncNowResponse{},
		SyncAllRequest{}, SyncAllResponse{},
		SyncFileRequest{}, SyncFileResponse{},
		PauseSyncRequest{}, PauseSyncResponse{},
		ResumeSyncRequest{}, ResumeSyncResponse{},
		CancelSyncRequest{}, CancelSyncResponse{},
		GetSyncStatusRequest{}, GetSyncStatusResponse{},
		GetAllSyncStatusRequest{}, GetAllSyncStatusResponse{},
		GetPendingQueueRequest{}, GetPendingQueueResponse{},
		GetSyncProgressRequest{}, GetSyncProgressResponse{},
		GetSyncHistoryRequest{}, GetSyncHistoryResponse{},
		GetSyncStatisticsRequest{}, GetSyncStatisticsResponse{},
		GetDirtyFilesRequest{}, GetDirtyFilesResponse{},
		MarkFileDirtyRequest{}, MarkFileDirtyResponse{},
		ClearFileDirtyRequest{}, ClearFileDirtyResponse{},
		AddDiskRequest{}, AddDiskResponse{},
		AddSyncPairRequest{}, AddSyncPairResponse{},
		GetConfigRequest{}, GetConfigResponse{},
		UpdateConfigRequest{}, UpdateConfigResponse{},
		PrepareForShutdownRequest{}, PrepareForShutdownResponse{},
		GetVersionRequest{}, GetVersionResponse{},
		HealthCheckRequest{}, HealthCheckResponse{},
		SubscribeRequest{},
		eventFrame{},
	} {
		gob.Register(v)
	}
}

// writeFrame encodes payload as a length-prefixed gob envelope, enforcing
// pkg/daemon.MaximumIPCMessageSize as an upper bound on message size.
func writeFrame(w io.Writer, payload interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope{Payload: payload}); err != nil {
		return fmt.Errorf("unable to encode message: %w", err)
	}
	if buf.Len() > daemon.MaximumIPCMessageSize {
		return fmt.Errorf("encoded message of %d bytes exceeds maximum IPC message size", buf.Len())
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(buf.Len()))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("unable to write message length: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("unable to write message body: %w", err)
	}
	return nil
}

// readFrame decodes the next length-prefixed gob envelope from r.
func readFrame(r io.Reader) (interface{}, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(length[:])
	if size > daemon.MaximumIPCMessageSize {
		return nil, fmt.Errorf("incoming message of %d bytes exceeds maximum IPC message size", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("unable to read message body: %w", err)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, fmt.Errorf("unable to decode message: %w", err)
	}
	return env.Payload, nil
}
