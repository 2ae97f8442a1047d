package store

import (
	"net/url"
	"path"
	"strings"
)

// The data branch holds one directory per issue, keyed by the issue id.
// Every metadata field lives in its own file so that concurrent edits of
// different fields on the same issue never touch the same path, and tags
// and dependencies are one empty file each for the same reason. Only two
// edits of the same field of the same issue can produce a merge conflict.
//
//	README.md                              branch marker
//	config.toml                            database options (optional)
//	<issue-id>/meta/title
//	<issue-id>/meta/description
//	<issue-id>/meta/state
//	<issue-id>/meta/assignee               absent file = unassigned
//	<issue-id>/meta/author
//	<issue-id>/meta/created_at             RFC 3339
//	<issue-id>/meta/done_at                RFC 3339, present once done
//	<issue-id>/meta/tags/<escaped-tag>
//	<issue-id>/meta/deps/<issue-id>
//	<issue-id>/comments/<comment-id>/author
//	<issue-id>/comments/<comment-id>/created_at
//	<issue-id>/comments/<comment-id>/body
//	<issue-id>/attachments/<filename>
const (
	readmeFile = "README.md"
	configFile = "config.toml"

	metaDir        = "meta"
	commentsDir    = "comments"
	attachmentsDir = "attachments"

	fileTitle       = "title"
	fileDescription = "description"
	fileState       = "state"
	fileAssignee    = "assignee"
	fileAuthor      = "author"
	fileCreatedAt   = "created_at"
	fileDoneAt      = "done_at"
	fileBody        = "body"

	tagsDir = "tags"
	depsDir = "deps"
)

func metaPath(id, field string) string {
	return path.Join(id, metaDir, field)
}

func tagPath(id, tag string) string {
	return path.Join(id, metaDir, tagsDir, escapeTag(tag))
}

func depPath(id, dep string) string {
	return path.Join(id, metaDir, depsDir, dep)
}

func commentPath(id, commentID, field string) string {
	return path.Join(id, commentsDir, commentID, field)
}

func attachmentPath(id, name string) string {
	return path.Join(id, attachmentsDir, name)
}

// escapeTag makes a tag safe as a single path component. Tags may
// contain slashes or a leading dot, neither of which a tree entry name
// can carry.
func escapeTag(tag string) string {
	escaped := url.PathEscape(tag)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}

func unescapeTag(name string) string {
	tag, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return tag
}
