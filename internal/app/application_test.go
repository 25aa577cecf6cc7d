package app

import (
	"context"
	"testing"

	"github.com/yangsenessa/univoice-dapp/internal/app/system"
	"github.com/yangsenessa/univoice-dapp/internal/domain/profile"
)

func TestApplication_StartSeedsQuests(t *testing.T) {
	application, err := New(Stores{}, Options{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer application.Stop(ctx)

	quests, err := application.Tasks.ListQuests(ctx)
	if err != nil {
		t.Fatalf("list quests: %v", err)
	}
	if len(quests) != 2 {
		t.Fatalf("quests seeded: %d", len(quests))
	}
}

func TestApplication_SharedMemoryStore(t *testing.T) {
	application, err := New(Stores{}, Options{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer application.Stop(ctx)

	// The default stores share one backing store, so a quest claim finds
	// the profile created through the profile service.
	p, err := application.Profiles.AddCustomInfo(ctx, profile.Profile{DappPrincipal: "dapp-1"})
	if err != nil {
		t.Fatalf("add profile: %v", err)
	}

	granted, err := application.Tasks.ClaimQuestReward(ctx, "dapp-1", 1)
	if err != nil {
		t.Fatalf("claim quest: %v", err)
	}
	if !granted {
		t.Fatal("quest not granted")
	}

	reloaded, err := application.Profiles.GetByPrincipal(ctx, p.Key())
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if reloaded.TotalRewards != 5000 {
		t.Fatalf("quest reward not credited: %d", reloaded.TotalRewards)
	}
}

func TestApplication_RejectsDuplicateAttach(t *testing.T) {
	application, err := New(Stores{}, Options{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	svc := system.NoopService{ServiceName: "extra"}
	if err := application.Attach(svc); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := application.Attach(svc); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
