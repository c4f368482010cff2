package mcpserver

// SyntaxGuide describes the note syntax the publisher understands. Assistants
// drafting notes should read it before writing card or callout markup.
const SyntaxGuide = `# Ghostwriter Note Syntax

Notes are Obsidian Markdown files. Publishing renders them to Ghost HTML
cards and creates or updates a post or page with the same slug.

## Frontmatter

` + "```" + `yaml
---
title: Hello World          # defaults to the file name
slug: hello-world           # defaults to the slugified title
type: post                  # post | page
status: draft               # draft | published | scheduled
visibility: public          # public | members | paid
featured: false
tags: [go, notes]
excerpt: Short summary      # 300 characters at most
canonical_url: https://example.com/original
meta_title: SEO title
meta_description: SEO description
feature_image: cover.png    # vault file or URL
feature_image_alt: Alt text
feature_image_caption: Caption
upload_assets: true         # upload referenced vault files to Ghost
image_directory: images     # where uploaded assets live on Ghost
---
` + "```" + `

An invalid ` + "`type`" + ` or a too long ` + "`excerpt`" + ` aborts the publish
before anything is sent.

## Links and embeds

- ` + "`[[Note]]`, `[[Note|alias]]`, `[[Note#Heading]]`" + `: links to other
  published notes, resolved through the vault index.
- ` + "`![[image.png]]`, `![[image.png|400]]`, `![[clip.mp4]]`, `![[song.mp3]]`" + `:
  image, video, audio or file cards.
- ` + "`![alt](src \"caption\")`" + `: an image card with a caption.
- A URL alone on its line becomes a rich embed (YouTube, Vimeo, X and
  similar) or a bookmark card.

## Callouts

` + "```" + `markdown
> [!warning]- Optional title
> Body text, may contain nested callouts.
` + "```" + `

A fence whose info string is an emoji and a colour renders a Ghost callout
card:

` + "```" + `markdown
` + "```" + `💡 blue
Callout text
` + "```" + `
` + "```" + `

Colours: grey, white, blue, green, yellow, red, pink, purple, accent.

## Cards

- ` + "`Button: [Text](https://example.com)`" + ` or ` + "`Button (center): ...`" + `
- ` + "`Download: [[file.pdf]]`" + ` with an optional description on the next line.
- A heading, an optional subtitle line and a ` + "```header" + ` or
  ` + "```signup" + ` fence of ` + "`label: value`" + ` settings (layout,
  alignment, button, background).
- A ` + "```product" + ` fence with image, title, description, button and
  rating (1-5).

## Inline

- ` + "`==highlight==`" + ` marks text.
- ` + "`*[HTML]: Hyper Text Markup Language`" + ` defines an abbreviation.
- ` + "`- [ ] task`" + ` and ` + "`- [x] done`" + ` render as a checklist.
- Pipe tables are wrapped in a table card.
- Code fences and code spans are left untouched.
`
