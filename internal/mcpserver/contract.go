package mcpserver

import "strings"

// LinkFormatContract describes how documents reference each other. %SCHEME%
// is replaced with the configured marker scheme.
const linkFormatContract = `# Weft Link Format

Documents are notes or checklists. Each has a permanent UUID (the ` + "`uuid`" + `
frontmatter key) and a location: owner, category path and slug. Locations change
on rename or move; UUIDs never do.

## Stable links (preferred)

` + "```" + `markdown
[Groceries](%SCHEME%://checklist:6f1c2b7e-3a59-4c1e-9a47-2f0d6c1b8e01)
[Plan](%SCHEME%://note:9a0e4c55-1b2d-4f3a-8e6c-7d5b3a1f2e90)
` + "```" + `

The marker is ` + "`%SCHEME%://{note|checklist}:{uuid}`" + `. It survives every rename.
Use ` + "`resolve_document`" + ` to turn a UUID into its current location and title.

## Legacy links

` + "```" + `markdown
[Plan](/note/work/notes/plan)
` + "```" + `

The path is ` + "`/{note|checklist}/{category...}/{slug}`" + ` and is resolved against the
linking document's owner first. Legacy links break when the target moves unless
the move goes through the document service, which rewrites them to stable form.

## Rules

1. Prefer stable links in new content.
2. Links inside code spans and fenced code blocks are ignored.
3. A document never links to itself; self references are dropped.
4. Links to unknown documents are counted as dangling and produce no edge.
`

// LinkFormatContract returns the link format description for scheme.
func LinkFormatContract(scheme string) string {
	return strings.ReplaceAll(linkFormatContract, "%SCHEME%", scheme)
}
