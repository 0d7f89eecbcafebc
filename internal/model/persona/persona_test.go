package persona

import "testing"

func TestFindByIDIgnoresCase(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := store.FindByID(" Charlotte ")
	if !ok {
		t.Fatalf("expected charlotte persona")
	}
	if p.Name != "Charlotte" {
		t.Fatalf("unexpected persona name %q", p.Name)
	}

	if _, ok := store.FindByID("socrates"); ok {
		t.Fatalf("unexpected persona found")
	}
}

func TestInitialMemoriesReturnsCopy(t *testing.T) {
	p, _ := NewMemoryStore(Seed()).FindByID("charlotte")

	memories := p.InitialMemories()
	if len(memories) != 3 {
		t.Fatalf("expected 3 seed memories, got %d", len(memories))
	}
	if memories[0].ConversationTopic != "academic_research" || memories[0].ImportanceScore != 0.9 {
		t.Fatalf("unexpected first memory: %+v", memories[0])
	}

	memories[0].UserMessage = "changed"
	if p.Memories[0].UserMessage == "changed" {
		t.Fatalf("InitialMemories must not alias the seed")
	}
}
