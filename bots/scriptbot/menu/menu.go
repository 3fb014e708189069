// Package menu maps menu identifiers to their ordered buttons.
package menu

import "github.com/m3rciful/scriptbot/bots/scriptbot/models"

// ID identifies a menu.
type ID string

const (
	Top            ID = "top"
	Services       ID = "services"
	LanguageChoice ID = "language_choice"
	RunLanguage    ID = "run_language"
	CancelRun      ID = "cancel_run"
	CancelCreate   ID = "cancel_create"
	LibrariesBack  ID = "libraries_back"
)

// Action codes carried by inline buttons.
const (
	ActionRunFile          = "run_file"
	ActionOurServices      = "our_services"
	ActionMainMenu         = "main_menu"
	ActionCreateFile       = "create_file"
	ActionInstallLibraries = "install_libraries"
	ActionBackToServices   = "back_to_services"
	ActionLangPython       = "lang_python"
	ActionLangPHP          = "lang_php"
	ActionRunPython        = "run_python"
	ActionRunPHP           = "run_php"
)

// Item is one button: a label and the action code it sends.
type Item struct {
	Label  string
	Action string
}

var menus = map[ID][]Item{
	Top: {
		{"🔧 Run a file", ActionRunFile},
		{"🚀 Our services", ActionOurServices},
	},
	Services: {
		{"📁 Create a file", ActionCreateFile},
		{"📚 Install libraries", ActionInstallLibraries},
		{"↩️ Back", ActionMainMenu},
	},
	LanguageChoice: {
		{"🐍 Python", ActionLangPython},
		{"🐘 PHP", ActionLangPHP},
		{"↩️ Back", ActionBackToServices},
	},
	RunLanguage: {
		{"🐍 Python", ActionRunPython},
		{"🐘 PHP", ActionRunPHP},
		{"↩️ Back", ActionMainMenu},
	},
	CancelRun: {
		{"↩️ Cancel", ActionMainMenu},
	},
	CancelCreate: {
		{"↩️ Cancel", ActionBackToServices},
	},
	LibrariesBack: {
		{"↩️ Back", ActionBackToServices},
	},
}

// Items returns a fresh copy of the menu's buttons; unknown ids yield nil.
func Items(id ID) []Item {
	items, ok := menus[id]
	if !ok {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// IDs lists every defined menu.
func IDs() []ID {
	return []ID{Top, Services, LanguageChoice, RunLanguage, CancelRun, CancelCreate, LibrariesBack}
}

// Actions returns every action code that appears in some menu, without duplicates.
func Actions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range IDs() {
		for _, it := range menus[id] {
			if !seen[it.Action] {
				seen[it.Action] = true
				out = append(out, it.Action)
			}
		}
	}
	return out
}

// CreateAction returns the create-flow action code for lang.
func CreateAction(lang models.Language) string {
	return "lang_" + string(lang)
}

// RunAction returns the run-flow action code for lang.
func RunAction(lang models.Language) string {
	return "run_" + string(lang)
}
