package mcpserver

// CharacterFormatContract describes the character fields LLM consumers
// should follow when creating or editing characters.
const CharacterFormatContract = `# Roster Character Format

Characters come from two places: the remote catalog (read-only) and the local
overlay (characters you create or edit). Local copies always win over remote ones
with the same id.

## Fields

` + "```" + `json
{
  "id": -3,                      // assigned by roster; local ids are negative
  "name": "Nova",                // REQUIRED, 1-200 characters
  "description": "Human Rocket", // OPTIONAL, up to 5000 characters
  "thumbnail": {                 // OPTIONAL
    "path": "https://example.com/images/nova",
    "extension": "jpg"           // jpg, jpeg, png, gif or webp
  },
  "modified": "2026-01-15T10:00:00Z",
  "source": "local"              // "local" or "api"; set by roster
}
` + "```" + `

## Rules

1. **Do not send an id when creating.** Roster picks one below every local id in use.
2. **name is trimmed** and must not be blank after trimming.
3. **thumbnail.path has no extension.** Roster builds the image URL as
   ` + "`" + `<path>/standard_xlarge.<extension>` + "`" + ` and upgrades http to https.
4. **Deleting a remote character only hides it locally.** The remote catalog is never changed.
5. **Edits to remote characters are not saved** unless a local copy already exists.
6. **comics, series, stories, events and urls** are metadata from the remote catalog;
   locally created characters start with empty lists.
`
