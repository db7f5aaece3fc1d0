// pkg/groups/names.go - deterministic group name derivation.

package groups

import "github.com/macadmins/jcimporter/pkg/config"

// CompleteSuffix marks the post-install group paired with a pre-install
// group.
const CompleteSuffix = "-Complete"

// Names holds the pre-install and post-install group names for a run.
type Names struct {
	PreInstall  string
	PostInstall string
}

// DeriveNames produces the group names for an app and version. An override
// other than the "default" keyword replaces the derived pre-install name.
// The post-install name is always the pre-install name plus CompleteSuffix;
// if an operator renames either group out of band the pairing is not
// detected and the derived name is simply created anew on the next run.
func DeriveNames(appName, appVersion, override string) Names {
	pre := appName + "-AutoPkg-" + appVersion
	if override != "" && override != config.DefaultGroupKeyword {
		pre = override
	}
	return Names{PreInstall: pre, PostInstall: pre + CompleteSuffix}
}
