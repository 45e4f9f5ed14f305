package mcpserver

// RecordFormatContract describes the document format of a vulnerability
// record, for LLM consumers drafting or reading records.
const RecordFormatContract = `# Bugwall Record Format Contract

Every vulnerability is one Markdown file in the content store, named
` + "`<slug>.md`" + `. The slug is the file name without its extension and is the
record's identity in URLs.

## Structure

` + "```" + `markdown
---
id: VUL-001                  # REQUIRED, letters-hyphen-digits
title: SQL injection in login # REQUIRED
status: unresolved           # REQUIRED: unresolved | resolved | not-applicable | archived
level: V                     # REQUIRED: I | II | III | IV | V (V is most severe)
discoveredAt: "2024-01-10"   # REQUIRED, YYYY-MM-DD
category: Web                # REQUIRED
description: One line summary # OPTIONAL
tags: [sqli, auth]           # OPTIONAL, YAML list
---

Body in GitHub-flavored Markdown: tables, strikethrough, task lists,
autolinks, fenced code with a language, $inline$ and $$display$$ math.
` + "```" + `

## Rules

1. **The header is mandatory.** A file whose header is missing, malformed or
   lacks a required field is left out of every listing.
2. **Levels are ordinal.** IV and V count as critical.
3. **Dates** should be plain ` + "`YYYY-MM-DD`" + `. Records with an unreadable date
   sort last and never match a date filter.
4. **Slugs are unique.** When two files share a slug, only the first in
   name order is served.
5. **Raw HTML** in the body is passed through unchanged.

## Submitting

Records are never written through this server. Prepare a draft with
` + "`app draft`" + ` or ` + "`POST /api/contribute`" + ` and submit it through the issue tracker.
`
