package chatscreen_test

import (
	"strings"
	"testing"

	chatscreen "github.com/MegaGrindStone/chatscreen"
)

func TestChatScriptClearsInputAfterSend(t *testing.T) {
	b, err := chatscreen.StaticFS.ReadFile("static/chat.js")
	if err != nil {
		t.Fatal(err)
	}
	js := string(b)

	// reset() would restore the draft rendered with the page
	if strings.Contains(js, "form.reset()") {
		t.Error("chat.js should not reset the form after a send")
	}
	if !strings.Contains(js, `input.value = "";`) {
		t.Error("chat.js should clear the input after a send")
	}
}
