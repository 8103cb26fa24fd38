package transport

import "testing"

func TestParseChatIDs(t *testing.T) {
	t.Parallel()
	got, err := ParseChatIDs(" 123;-100456, 789 ;; ")
	if err != nil {
		t.Fatalf("ParseChatIDs: %v", err)
	}
	if len(got) != 3 || got[0] != 123 || got[1] != -100456 || got[2] != 789 {
		t.Fatalf("ids = %v", got)
	}
	if _, err := ParseChatIDs("12;abc"); err == nil {
		t.Fatal("non-numeric id accepted")
	}
	if got, _ := ParseChatIDs(""); len(got) != 0 {
		t.Fatalf("empty input = %v", got)
	}
}

func TestMergeRecipients(t *testing.T) {
	t.Parallel()
	got := MergeRecipients([]ChatID{5, 3, 0}, []ChatID{3, -9}, nil)
	want := []ChatID{-9, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
