package mcpserver

// DocumentFormatContract describes the Markdown document layout that LLM
// consumers should follow when writing post and page bodies.
const DocumentFormatContract = `# Folio Document Format Contract

Folio stores every post and page as one Markdown file with YAML front matter.
Tools take the title, body and type separately; Folio writes the front matter.

## Layout

- Draft posts live in ` + "`" + `_drafts/<slug>.md` + "`" + `.
- Published posts live in ` + "`" + `_posts/<slug>.md` + "`" + `.
- Pages live in ` + "`" + `_pages/<slug>.md` + "`" + `.
- Discarded documents move to ` + "`" + `_discarded/` + "`" + ` and are listed by ` + "`" + `list_recycle` + "`" + `.

A document is addressed by its ID, ` + "`" + `<type>/<slug>` + "`" + ` (e.g. ` + "`" + `post/hello-world` + "`" + `).
The ID does not change when a post is published or unpublished.

## Front matter

` + "```" + `markdown
---
title: Hello World          # written from the title argument
date: 2025-01-20 09:30:00   # set on creation
tags:
  - go
categories:
  - notes
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Slugs** are lowercase ASCII, digits and hyphens. A taken slug gets a numeric suffix.
2. **Posts start as drafts.** Use ` + "`" + `publish_document` + "`" + ` to move one to ` + "`" + `_posts/` + "`" + `.
3. **Pages have no draft state.** Publish and unpublish are rejected for pages.
4. **Discard is soft.** Restore with one of the strategies ` + "`" + `keepBoth` + "`" + `, ` + "`" + `overwrite` + "`" + ` or ` + "`" + `rename` + "`" + `.
5. **Encoding** is UTF-8 with a trailing newline.
`
