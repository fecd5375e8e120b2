package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesMissingFileYieldsDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultRules(), rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	require.True(t, rules.Enabled)
	require.True(t, rules.IncludeReplies)
	require.Empty(t, rules.Words)
}

func TestSaveAndLoadRulesRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules", "rules.yaml")

	want := Rules{
		Enabled:        true,
		Words:          []string{"crypto", "first"},
		MutedAuthors:   []string{"@SpamLord"},
		HideLinks:      true,
		MatchCase:      true,
		IncludeReplies: false,
	}
	require.NoError(t, SaveRules(path, want))

	got, err := LoadRules(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRulesCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "rules.yaml")
	require.NoError(t, SaveRules(path, DefaultRules()))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestLoadRulesMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("words: [unterminated"), 0644))

	rules, err := LoadRules(path)
	require.Error(t, err)

	// The caller still gets something safe to run with.
	if diff := cmp.Diff(DefaultRules(), rules); diff != "" {
		t.Errorf("fallback rules mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRulesPartialFileKeepsDefaultsForRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("words:\n  - crypto\n"), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Equal(t, []string{"crypto"}, rules.Words)
	require.True(t, rules.Enabled, "unset fields keep their defaults")
	require.True(t, rules.IncludeReplies)
}
