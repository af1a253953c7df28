package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	doc := Default()
	doc.Disks = append(doc.Disks, Disk{ID: "disk1", Name: "Backup", MountPath: "/mnt/backup", Enabled: true})
	doc.SyncPairs = append(doc.SyncPairs, SyncPair{ID: "pair1", DiskID: "disk1", LocalPath: "/home/user/docs"})

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, doc); err != nil {
		t.Fatalf("unable to save: %s", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unable to load: %s", err)
	}
	if len(loaded.Disks) != 1 || loaded.Disks[0].ID != "disk1" {
		t.Fatalf("expected disk1 to round-trip, got %+v", loaded.Disks)
	}
	if len(loaded.SyncPairs) != 1 || loaded.SyncPairs[0].DiskID != "disk1" {
		t.Fatalf("expected pair1 to round-trip, got %+v", loaded.SyncPairs)
	}
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error for a missing config file, got %v", err)
	}
}

func TestValidateRejectsDuplicateDiskID(t *testing.T) {
	doc := Default()
	doc.Disks = []Disk{{ID: "d1"}, {ID: "d1"}}
	if err := Validate(doc); err == nil {
		t.Fatal("expected duplicate disk id to be rejected")
	}
}

func TestValidateRejectsSyncPairReferencingUnknownDisk(t *testing.T) {
	doc := Default()
	doc.SyncPairs = []SyncPair{{ID: "p1", DiskID: "missing"}}
	if err := Validate(doc); err == nil {
		t.Fatal("expected sync pair referencing an unknown disk to be rejected")
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := Default()
	doc.Disks = []Disk{{ID: "d1"}}
	doc.SyncPairs = []SyncPair{{ID: "p1", DiskID: "d1"}}
	if err := Validate(doc); err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
}
