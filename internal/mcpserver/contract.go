package mcpserver

// NoteFormatGuide describes what a NeuralOS note holds and the Markdown
// layout accepted by the inbox importer.
const NoteFormatGuide = `# NeuralOS Note Format

A note belongs to exactly one user and carries:

- ` + "`title`" + ` (defaults to "Untitled Note")
- ` + "`content`" + ` free text, usually Markdown
- ` + "`tags`" + ` a list of short lowercase labels
- flags ` + "`is_favorite`" + `, ` + "`is_archived`" + `, ` + "`is_deleted`" + ` (trash)

Search is semantic: the title and content are embedded together, so a
descriptive title improves recall.

## Inbox files

Markdown files dropped into the inbox become notes of the configured user.
An optional YAML header sets the fields:

` + "```" + `markdown
---
title: Weekly standup
tags: [meeting-notes, project-x]
favorite: true
---

Body text. Inline #tags are collected too.
` + "```" + `

Without a ` + "`title`" + `, the first ` + "`# Heading`" + ` is used. Imported files move to
` + "`imported/`" + `; files that fail move to ` + "`failed/`" + ` with an ` + "`.error.txt`" + ` report.
`
