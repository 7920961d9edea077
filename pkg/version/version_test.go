package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, "pgedge-rrbench "+Version) {
		t.Errorf("Expected info to start with the tool name and version, got %s", info)
	}
	if Short() != Version {
		t.Errorf("Expected %s, got %s", Version, Short())
	}
}
