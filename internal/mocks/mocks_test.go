package mocks

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mcdonaldj/zipwatch/internal/ports"
)

func TestMockFileSystem(t *testing.T) {
	mockFS := NewMockFileSystem()

	// Test WriteFile and ReadFile
	mockFS.WriteFile("/test/file.txt", []byte("hello"), 0644)
	content, err := mockFS.ReadFile("/test/file.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("content = %q, expected %q", string(content), "hello")
	}

	// Test Stat after WriteFile
	info, err := mockFS.Stat("/test/file.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("size = %d, expected 5", info.Size())
	}

	// Test ReadFile for non-existent file
	_, err = mockFS.ReadFile("/nonexistent")
	if err == nil {
		t.Error("ReadFile should fail for non-existent file")
	}

	// Test error injection
	mockFS.Errors["/error/path"] = errors.New("injected error")
	_, err = mockFS.ReadFile("/error/path")
	if err == nil || err.Error() != "injected error" {
		t.Errorf("Expected injected error, got: %v", err)
	}
}

func TestMockFileSystemMkdir(t *testing.T) {
	mockFS := NewMockFileSystem()

	if err := mockFS.Mkdir("/downloads/Report", 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	info, err := mockFS.Stat("/downloads/Report")
	if err != nil || !info.IsDir() {
		t.Fatalf("Stat after Mkdir = %v, %v", info, err)
	}

	err = mockFS.Mkdir("/downloads/Report", 0755)
	if !errors.Is(err, os.ErrExist) {
		t.Errorf("second Mkdir error = %v, expected ErrExist", err)
	}

	// MkdirAll is idempotent
	if err := mockFS.MkdirAll("/downloads/Report", 0755); err != nil {
		t.Errorf("MkdirAll on existing dir failed: %v", err)
	}
}

func TestMockFileSystemRename(t *testing.T) {
	mockFS := NewMockFileSystem()
	mockFS.Files["/trash/files/a.zip"] = []byte("zip")

	if err := mockFS.Rename("/trash/files/a.zip", "/downloads/a.zip"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, ok := mockFS.Files["/downloads/a.zip"]; !ok {
		t.Error("renamed file missing at new path")
	}
	if len(mockFS.Renames) != 1 {
		t.Errorf("Renames = %d, expected 1", len(mockFS.Renames))
	}

	if err := mockFS.Rename("/missing", "/x"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Rename of missing file error = %v, expected ErrNotExist", err)
	}
}

func TestMockArchiver(t *testing.T) {
	archiver := NewMockArchiver()
	archiver.Entries = 5

	arc, err := archiver.Open("/downloads/Report.zip")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	count, err := arc.Extract(context.Background(), "/downloads/Report")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Extract returned %d, expected 5", count)
	}
	if err := arc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	calls := archiver.Extracts()
	if len(calls) != 1 || calls[0].DestDir != "/downloads/Report" {
		t.Errorf("ExtractCalls = %+v", calls)
	}
	if archiver.CloseCalls != 1 {
		t.Errorf("CloseCalls = %d, expected 1", archiver.CloseCalls)
	}

	// Test error injection
	archiver.Errors["Open"] = errors.New("corrupt header")
	_, err = archiver.Open("/downloads/Bad.zip")
	if err == nil || err.Error() != "corrupt header" {
		t.Errorf("Expected 'corrupt header' error, got: %v", err)
	}
}

func TestMockRecycler(t *testing.T) {
	recycler := NewMockRecycler()
	recycler.TrashDir = "/trash"
	recycler.Results["/downloads/busy.zip"] = false

	dest, ok := recycler.Delete("/downloads/a.zip")
	if !ok || dest != "/trash/a.zip" {
		t.Errorf("Delete = %q, %v", dest, ok)
	}

	dest, ok = recycler.Delete("/downloads/busy.zip")
	if ok || dest != "" {
		t.Errorf("Delete of busy file = %q, %v", dest, ok)
	}

	if len(recycler.Calls()) != 2 {
		t.Errorf("DeleteCalls = %d, expected 2", len(recycler.Calls()))
	}
}

func TestMockAgentService(t *testing.T) {
	agent := NewMockAgentService()

	// Test initial state
	if agent.IsInstalled() {
		t.Error("Should not be installed initially")
	}
	if agent.Status() != "not installed" {
		t.Errorf("Status = %q, expected %q", agent.Status(), "not installed")
	}

	// Test Install
	err := agent.Install("/usr/local/bin/zipwatch", "/config.yaml")
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if !agent.IsInstalled() {
		t.Error("Should be installed after Install()")
	}
	if agent.Status() != "loaded" {
		t.Errorf("Status = %q, expected %q", agent.Status(), "loaded")
	}

	// Test Uninstall
	if err := agent.Uninstall(); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if agent.IsInstalled() {
		t.Error("Should not be installed after Uninstall()")
	}

	// Test error injection
	agent.Errors["Install"] = errors.New("permission denied")
	err = agent.Install("/path", "/config")
	if err == nil || err.Error() != "permission denied" {
		t.Errorf("Expected 'permission denied' error, got: %v", err)
	}
}

func TestMockSource(t *testing.T) {
	src := NewMockSource(4)

	if !src.Emit("/downloads/a.zip", ports.OpCreate) {
		t.Fatal("Emit on open source should succeed")
	}
	n := <-src.Events()
	if n.Path != "/downloads/a.zip" || n.Op != ports.OpCreate {
		t.Errorf("notification = %+v", n)
	}

	src.Fail(errors.New("overflow"))
	if err := <-src.Errors(); err == nil || err.Error() != "overflow" {
		t.Errorf("error = %v, expected overflow", err)
	}

	src.Close()
	src.Close()
	if src.CloseCalls != 2 || !src.Closed() {
		t.Errorf("CloseCalls = %d, Closed = %v", src.CloseCalls, src.Closed())
	}
	if src.Emit("/downloads/b.zip", ports.OpCreate) {
		t.Error("Emit after Close should report false")
	}
	if _, ok := <-src.Events(); ok {
		t.Error("events channel should be closed")
	}
}
