// Package inject rewrites parameter declarations in design template files
// and stages pre-generated design artifacts for the downstream toolchain.
package inject

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/cs217/hlsweep/log"
	"github.com/cs217/hlsweep/util"
)

// declPattern matches `<keyword> <name> = <integer>;`. Group 1 is everything
// up to the value, group 2 the value itself.
func declPattern(keyword, name string) *regexp.Regexp {
	words := strings.Fields(keyword)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	prefix := strings.Join(append(words, regexp.QuoteMeta(name)), `\s+`)
	return regexp.MustCompile(`(\b` + prefix + `\s*=\s*)(-?\d+);`)
}

// Replace substitutes the value of every `<keyword> <name> = <integer>;`
// declaration named in params. All other bytes are preserved.
func Replace(content []byte, keyword string, params map[string]string) ([]byte, error) {
	for _, name := range util.OrderedKeys(params) {
		value := params[name]
		if _, err := strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("value '%s' of parameter '%s' is not an integer", value, name)
		}
		re := declPattern(keyword, name)
		content = re.ReplaceAll(content, []byte("${1}"+value+";"))
	}
	return content, nil
}

// Missing returns the names that have no matching declaration in content.
func Missing(content []byte, keyword string, names []string) []string {
	missing := []string{}
	for _, name := range names {
		if !declPattern(keyword, name).Match(content) {
			missing = append(missing, name)
		}
	}
	return missing
}

// InjectFile rewrites the declarations of params in file in place.
func InjectFile(file, keyword string, params map[string]string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "failed to read template '%s'", file)
	}
	names := util.OrderedKeys(params)
	if missing := Missing(content, keyword, names); len(missing) > 0 {
		log.Warning("'%s' declares no '%s %s'.\n", file, keyword, strings.Join(missing, "', '"))
	}
	updated, err := Replace(content, keyword, params)
	if err != nil {
		return err
	}
	stat, err := os.Stat(file)
	if err != nil {
		return errors.Wrapf(err, "failed to stat template '%s'", file)
	}
	if err := os.WriteFile(file, updated, stat.Mode().Perm()); err != nil {
		return errors.Wrapf(err, "failed to write template '%s'", file)
	}
	log.Debug("Injected %v into '%s'.\n", params, file)
	return nil
}

// Current returns the values currently declared in file for names. Names
// without a declaration are absent from the result.
func Current(file, keyword string, names []string) (map[string]string, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template '%s'", file)
	}
	values := map[string]string{}
	for _, name := range names {
		if m := declPattern(keyword, name).FindSubmatch(content); m != nil {
			values[name] = string(m[2])
		}
	}
	return values, nil
}

// Stage copies the pre-generated artifact src to the fixed location dst,
// overwriting it. The artifact is produced by an earlier generation step; a
// missing src is reported as an error.
func Stage(src, dst string) error {
	if !util.FileExists(src) {
		return errors.Wrapf(os.ErrNotExist, "artifact '%s' does not exist, generate it first", src)
	}
	if err := util.CopyFile(src, dst); err != nil {
		return errors.Wrap(err, "failed to stage artifact")
	}
	log.Debug("Staged '%s' to '%s'.\n", src, dst)
	return nil
}

// Baseline puts the workspace back into its default parameter state.
// Restore applies it at most once, however many callers ask for it.
type Baseline struct {
	once  sync.Once
	apply func() error
	err   error
}

// NewBaseline returns a Baseline that calls apply on restore.
func NewBaseline(apply func() error) *Baseline {
	return &Baseline{apply: apply}
}

// Restore applies the baseline on first call and returns its result on every call.
func (b *Baseline) Restore() error {
	b.once.Do(func() {
		b.err = b.apply()
	})
	return b.err
}
