package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/mock"
)

type managerFixture struct {
	faces   *mock.MockFaceStore
	images  *mock.MockImageIndex
	states  *mock.MockClusterStateStore
	manager *Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	faces := mock.NewMockFaceStore()
	images := mock.NewMockImageIndex()
	states := mock.NewMockClusterStateStore()
	engine := NewEngine(DefaultParams())
	loader := NewLoader(faces, images, 10)
	return &managerFixture{
		faces:   faces,
		images:  images,
		states:  states,
		manager: NewManager(engine, loader, images, states),
	}
}

func (f *managerFixture) addImage(t *testing.T, uid string, degs ...float64) {
	t.Helper()
	ctx := context.Background()
	seedImage(t, f.images, uid)
	faces := make([]database.StoredFace, 0, len(degs))
	for i, deg := range degs {
		faces = append(faces, storedFace(i, deg))
	}
	if err := f.faces.SaveFaces(ctx, uid, faces); err != nil {
		t.Fatal(err)
	}
}

func TestManagerStartWithoutPersistedState(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)
	f.addImage(t, "img-n", 180)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatalf("GetClusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %v", clusters)
	}
	for _, paths := range clusters {
		if len(paths) != 2 {
			t.Errorf("expected 2 image paths, got %v", paths)
		}
	}
}

func TestManagerStartCorruptStateFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	if err := f.states.Put(ctx, []byte("garbage")); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("corrupt state must not fail startup: %v", err)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatalf("GetClusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Errorf("expected rebuild to produce 1 cluster, got %v", clusters)
	}
}

func TestManagerStartStateStoreErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)
	f.states.GetError = fmt.Errorf("connection reset")

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("state store error must not fail startup: %v", err)
	}
	if f.manager.Engine().Size() != 2 {
		t.Errorf("expected rebuild from embedding store, size = %d", f.manager.Engine().Size())
	}
}

func TestManagerStartParameterMismatchRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	// Persist a snapshot computed under different parameters.
	stale := NewEngine(Params{Eps: 0.9, MinSamples: 3})
	blob, err := EncodeState(stale.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.states.Put(ctx, blob); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Errorf("expected rebuild under current parameters, got %v", clusters)
	}
}

func TestManagerShutdownPersistsAndRestartRestores(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	blob, err := f.states.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blob == nil {
		t.Fatal("expected cluster state persisted on shutdown")
	}

	// A fresh process picks the snapshot up.
	engine := NewEngine(DefaultParams())
	loader := NewLoader(f.faces, f.images, 10)
	restarted := NewManager(engine, loader, f.images, f.states)
	if err := restarted.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	clusters, err := restarted.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Errorf("expected restored cluster, got %v", clusters)
	}
}

func TestManagerShutdownNoopWhenNeverBuilt(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	blob, err := f.states.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blob != nil {
		t.Errorf("nothing was built, nothing should be persisted")
	}
}

func TestManagerOnImageAdded(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	f.addImage(t, "img-b", 20)
	if err := f.manager.OnImageAdded(ctx, "img-b"); err != nil {
		t.Fatalf("OnImageAdded failed: %v", err)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Errorf("expected new image to form a cluster with img-a, got %v", clusters)
	}
}

func TestManagerOnImageRemoved(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	f.manager.OnImageRemoved(ctx, "img-b")

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 0 {
		t.Errorf("expected cluster dissolved after removal, got %v", clusters)
	}
}

func TestManagerSkippedImages(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	degs := make([]float64, 11)
	for i := range degs {
		degs[i] = float64(i)
	}
	f.addImage(t, "img-crowd", degs...)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	skipped := f.manager.SkippedImages()
	if len(skipped) != 1 || skipped[0] != "img-crowd" {
		t.Errorf("expected img-crowd skipped, got %v", skipped)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, paths := range clusters {
		for _, path := range paths {
			if path == "/photos/img-crowd.jpg" {
				t.Errorf("excluded image must not appear in clusters")
			}
		}
	}
}

func TestManagerGetClustersPrunesDeletedImages(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.addImage(t, "img-a", 0)
	f.addImage(t, "img-b", 20)

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The image index entry vanishes without the clustering being told.
	if err := f.images.Delete(ctx, "img-b"); err != nil {
		t.Fatal(err)
	}

	clusters, err := f.manager.GetClusters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 0 {
		t.Errorf("cluster with one resolvable image must be dropped, got %v", clusters)
	}
}
