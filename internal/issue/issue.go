// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type (
	// Id identifies a catalogued issue.
	Id int

	// MarkdownMsg is Markdown rendered to the terminal by glamour.
	MarkdownMsg string

	// HttpLink is a documentation or external URL.
	HttpLink string

	// Issue is a catalogued, renderable explanation of a failure class.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

const (
	ModDirNotFoundId Id = iota + 1
	ConfigLoadFailedId
	LegacyManifestId
	ManifestSchemaId
	ManifestInvalidId
	ModCollisionId
	AdapterResolutionFailedId
	TransformationFailedId
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue with glamour. An empty stylePath selects the automatic style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	modDirNotFoundIssue = &Issue{
		id: ModDirNotFoundId,
		mdMsg: `
# No mod directory found

None of the configured mod directories exist, so nothing was discovered.

## Things you can try
- Create the default directory:
~~~
$ mkdir mods
~~~
- Pass directories explicitly:
~~~
$ felis discover ./mods ./libs
~~~
- Set ` + "`mod_dirs`" + ` in your config file.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

The config file exists but does not satisfy the configuration schema.

## Things you can try
- Inspect the effective configuration:
~~~
$ felis config show
~~~
- Check that ` + "`side`" + ` is "client" or "server" and ` + "`workers`" + ` is a positive integer.
- Remove unknown keys; the schema is closed.`,
	}

	legacyManifestIssue = &Issue{
		id: LegacyManifestId,
		mdMsg: `
# Legacy mods.toml detected

A container ships the old ` + "`mods.toml`" + ` manifest. It is not read; the
container is loaded as a plain library instead.

## Things you can try
- Rename the manifest to ` + "`felis.mod.toml`" + ` and add ` + "`schema = 1`" + ` at the top.`,
	}

	manifestSchemaIssue = &Issue{
		id: ManifestSchemaId,
		mdMsg: `
# Unsupported manifest schema

Every ` + "`felis.mod.toml`" + ` must declare ` + "`schema = 1`" + ` as an integer.
Strings and floats are rejected.

~~~toml
schema = 1
modid = "example"
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid manifest

The manifest parsed but one of its fields breaks a rule.

## Rules
- ` + "`modid`" + ` is required and not empty
- every ` + "`[[transformations]]`" + ` entry has a ` + "`name`" + ` and a ` + "`specifier`" + `
- ` + "`[sides]`" + ` values are "client" or "server"`,
	}

	modCollisionIssue = &Issue{
		id: ModCollisionId,
		mdMsg: `
# Two containers declare the same mod id

A mod id may be registered only once per discovery run.

## Things you can try
- Remove the duplicate jar from your mod directories.
- Rename the ` + "`modid`" + ` of one of the mods.`,
	}

	adapterResolutionFailedIssue = &Issue{
		id: AdapterResolutionFailedId,
		mdMsg: `
# No language adapter could build a transformation

Every registered adapter rejected the specifier. The first adapter's failure is
reported as the cause, the rest are listed as suppressed.

## Things you can try
- Check the ` + "`specifier`" + ` spelling, e.g. ` + "`native:name`" + ` or ` + "`plugin:path.so#Symbol`" + `.
- Make sure the plugin was built with the same Go toolchain as felis.`,
		extLinks: []HttpLink{"https://pkg.go.dev/plugin"},
	}

	transformationFailedIssue = &Issue{
		id: TransformationFailedId,
		mdMsg: `
# A transformation failed

Loading the class was aborted. The error names the mod and transformation.

## Things you can try
- Run with ` + "`--verbose`" + ` to see the full error chain.
- Check which transformations target the class:
~~~
$ felis mod info <modid>
~~~`,
	}

	issues = map[Id]*Issue{
		modDirNotFoundIssue.Id():          modDirNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		legacyManifestIssue.Id():          legacyManifestIssue,
		manifestSchemaIssue.Id():          manifestSchemaIssue,
		manifestInvalidIssue.Id():         manifestInvalidIssue,
		modCollisionIssue.Id():            modCollisionIssue,
		adapterResolutionFailedIssue.Id(): adapterResolutionFailedIssue,
		transformationFailedIssue.Id():    transformationFailedIssue,
	}
)

// Values returns all catalogued issues ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
