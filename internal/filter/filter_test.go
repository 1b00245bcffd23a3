package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, s string) *Rules {
	t.Helper()
	r, err := Compile(s, Options{})
	require.NoError(t, err)
	return r
}

func TestEmptyFilterMatchesNothing(t *testing.T) {
	r := compile(t, "")
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, Unmatched, r.Match("any/file.txt", false))
	assert.Equal(t, Unmatched, r.Match("any", true))
}

func TestDefaultFilterIncludesEverything(t *testing.T) {
	r := compile(t, DefaultFilter)
	assert.Equal(t, Include, r.Match("a", false))
	assert.Equal(t, Include, r.Match("a/b/c", false))
	assert.Equal(t, Include, r.Match(".git", true))
	assert.Equal(t, Include, r.Match("a/b/__pycache__", true))
}

func TestDoubleStarOnlyRecursesAsSegment(t *testing.T) {
	r := compile(t, "**/*.txt")
	assert.Equal(t, Include, r.Match("a/b/c.txt", false))
	assert.Equal(t, Include, r.Match("c.txt", false))

	r = compile(t, "*.txt")
	assert.Equal(t, Include, r.Match("c.txt", false))
	assert.Equal(t, Unmatched, r.Match("a/b/c.txt", false))

	r = compile(t, "foo**bar")
	assert.Equal(t, Include, r.Match("fooXbar", false))
	assert.Equal(t, Unmatched, r.Match("foo/bar", false))
	assert.Equal(t, Unmatched, r.Match("foo/x/bar", false))
}

func TestFirstMatchWins(t *testing.T) {
	r := compile(t, "- foo.txt + **")
	assert.Equal(t, Exclude, r.Match("foo.txt", false))
	assert.Equal(t, Include, r.Match("bar.txt", false))
}

func TestKindSelectsRules(t *testing.T) {
	r := compile(t, "- build/ + **")
	assert.Equal(t, Exclude, r.Match("build", true))
	assert.Equal(t, Include, r.Match("build", false))

	r = compile(t, "notes")
	assert.Equal(t, Include, r.Match("notes", false))
	assert.Equal(t, Unmatched, r.Match("notes", true))
}

func TestExcludeHiddenAndCacheDirs(t *testing.T) {
	r := compile(t, "- **/.*/ **/__pycache__/ + **/*/ **/*")
	assert.Equal(t, Include, r.Match("a", false))
	assert.Equal(t, Include, r.Match("a/b", true))
	assert.Equal(t, Include, r.Match("a/b/c", false))
	assert.Equal(t, Exclude, r.Match(".git", true))
	assert.Equal(t, Exclude, r.Match("a/.git", true))
	assert.Equal(t, Exclude, r.Match("a/b/__pycache__", true))
}

func TestNestedIncludeTraversesParents(t *testing.T) {
	r := compile(t, "+ audio/music/**/*.flac - **/*/ **/*")
	assert.Equal(t, Include, r.Match("audio", true))
	assert.Equal(t, Include, r.Match("audio/music", true))
	assert.Equal(t, Include, r.Match("audio/music/OST", true))
	assert.Equal(t, Include, r.Match("audio/music/OST/Star Wars", true))
	assert.Equal(t, Include, r.Match("audio/music/OST/Star Wars/Duel of the Fates.flac", false))
	assert.Equal(t, Exclude, r.Match("video", true))
	assert.Equal(t, Exclude, r.Match("audio/audiobooks", true))
	assert.Equal(t, Exclude, r.Match("audio/music/OST/Star Wars/cover.jpg", false))
}

func TestTrailingDoubleStarTraversesSubdirectories(t *testing.T) {
	r := compile(t, "- audio/music/**/*.wav + audio/music/**")
	assert.Equal(t, Include, r.Match("audio", true))
	assert.Equal(t, Include, r.Match("audio/music", true))
	assert.Equal(t, Include, r.Match("audio/music/OST", true))
	assert.Equal(t, Include, r.Match("audio/music/OST/Titanic", true))
	assert.Equal(t, Include, r.Match("audio/music/OST/Titanic/cover.jpg", false))
	assert.Equal(t, Exclude, r.Match("audio/music/OST/Titanic/My Heart Will Go On (Recorder Cover).wav", false))
	assert.Equal(t, Unmatched, r.Match("video", true))
	assert.Equal(t, Unmatched, r.Match("audio/audiobooks", true))

	r = compile(t, "a/**")
	assert.Equal(t, Include, r.Match("a/b", true))
	assert.Equal(t, Include, r.Match("a/b/deep.txt", false))
	assert.Equal(t, Include, r.Match("a/top.txt", false))
}

func TestTrailingDoubleStarExcludeKeepsDirectories(t *testing.T) {
	r := compile(t, "- a/** + **")
	assert.Equal(t, Exclude, r.Match("a/b/c.txt", false))
	assert.Equal(t, Include, r.Match("a/b", true))
}

func TestMixedGroups(t *testing.T) {
	r := compile(t, "+ * - a/ b/a/ + b/*/ - **/x + */**/* - **/*")
	assert.Equal(t, Include, r.Match("a", false))
	assert.Equal(t, Include, r.Match("b/a", false))
	assert.Equal(t, Include, r.Match("b/a/a", false))
	assert.Equal(t, Include, r.Match("b/b", true))
	assert.Equal(t, Exclude, r.Match("a", true))
	assert.Equal(t, Exclude, r.Match("b/a", true))
	assert.Equal(t, Exclude, r.Match("b/b/x", false))
	assert.Equal(t, Include, r.Match("b/y", false))
	assert.Equal(t, Include, r.Match("b/b/y", false))
}

func TestSpacesAreLiteral(t *testing.T) {
	r := compile(t, `"my docs/" "my docs/old notes.txt"`)
	assert.Equal(t, Include, r.Match("my docs", true))
	assert.Equal(t, Include, r.Match("my docs/old notes.txt", false))
	assert.Equal(t, Unmatched, r.Match("my", true))
}

func TestIgnoreCase(t *testing.T) {
	r, err := Compile("+ a B - A b c + **/*", Options{IgnoreCase: true})
	require.NoError(t, err)
	assert.Equal(t, Include, r.Match("a", false))
	assert.Equal(t, Include, r.Match("A", false))
	assert.Equal(t, Include, r.Match("b", false))
	assert.Equal(t, Include, r.Match("B", false))
	assert.Equal(t, Exclude, r.Match("c", false))
	assert.Equal(t, Exclude, r.Match("C", false))

	r = compile(t, "a")
	assert.Equal(t, Unmatched, r.Match("A", false))
}

func TestIgnoreHidden(t *testing.T) {
	r, err := Compile("* */* .d **", Options{IgnoreHidden: true})
	require.NoError(t, err)
	assert.Equal(t, Include, r.Match("a", false))
	assert.Equal(t, Unmatched, r.Match(".a", false))
	assert.Equal(t, Include, r.Match("b/c", false))
	assert.Equal(t, Unmatched, r.Match(".b/c", false))
	assert.Equal(t, Unmatched, r.Match("b/.c", false))
	assert.Equal(t, Include, r.Match(".d", false))
	assert.Equal(t, Include, r.Match("x/y", true))
	assert.Equal(t, Unmatched, r.Match("x/.git", true))
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"- foo.txt + **",
		"+ audio/music/**/*.flac - **/*/ **/*",
		`"a b/" '*literal*' '+' x\\y`,
		"+ a/ - b/ + c/ d/ ./1",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			r := compile(t, in)
			again := compile(t, r.String())
			require.Equal(t, r.Len(), again.Len())
			for i, rule := range r.Rules() {
				other := again.Rules()[i]
				assert.Equal(t, rule.Sign, other.Sign)
				assert.Equal(t, rule.Pattern, other.Pattern)
				assert.Equal(t, rule.AppliesTo, other.AppliesTo)
			}
		})
	}
}

func TestNilRulesUnmatched(t *testing.T) {
	var r *Rules
	assert.Equal(t, Unmatched, r.Match("a", false))
}
