package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLanguage is the only catalogue shipped today.
const DefaultLanguage = "pt"

// CoreKeys must exist in every catalogue; both bots fall back to them on
// any failure path.
var CoreKeys = []string{"error_generic", "rate_limited", "btn_cancel"}

type Translator struct {
	lang     string
	messages map[string]string
	policy   string
}

// NewTranslator loads locales/<lang>.yaml and the terms-of-use text
// locales/policy-<lang>.txt from fsys.
func NewTranslator(fsys fs.FS, lang string) (*Translator, error) {
	file := path.Join("locales", lang+".yaml")
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", file, err)
	}
	t, err := parseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	t.lang = lang

	policyFile := path.Join("locales", "policy-"+lang+".txt")
	policy, err := fs.ReadFile(fsys, policyFile)
	if err != nil {
		return nil, fmt.Errorf("read terms %s: %w", policyFile, err)
	}
	t.policy = strings.TrimRight(string(policy), "\n")
	return t, t.Require(CoreKeys...)
}

// Default loads the embedded pt-BR catalogue.
func Default() (*Translator, error) {
	return NewTranslator(LocalesFS, DefaultLanguage)
}

func parseCatalogue(data []byte) (*Translator, error) {
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(messages) == 0 {
		return nil, errors.New("catalogue is empty")
	}
	return &Translator{messages: messages}, nil
}

// Lang is the language code the catalogue was loaded for.
func (t *Translator) Lang() string { return t.lang }

// T returns the text for key formatted with args. Unknown keys come back
// verbatim. Arguments are ignored for messages without verbs so stray args
// never leak fmt noise into a chat.
func (t *Translator) T(key string, args ...interface{}) string {
	msg, ok := t.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 || !strings.Contains(msg, "%") {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Require reports every key in keys that the catalogue lacks.
func (t *Translator) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := t.messages[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("catalogue %q is missing %s", t.lang, strings.Join(missing, ", "))
}

// Policy is the terms-of-use text shown by the registration bot.
func (t *Translator) Policy() string {
	return t.policy
}
