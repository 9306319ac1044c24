package classify

import (
	"path/filepath"
	"strings"

	"librarian/internal/media"
)

const maxAncestorDepth = 5

// Input describes one file to classify.
type Input struct {
	// Path is the absolute file path.
	Path string
	// Root is the scan root. Folders above it are not considered. Empty means
	// the whole path is used.
	Root string
	// SiblingMedia is the number of media files in the file's directory,
	// including the file itself. Zero means unknown.
	SiblingMedia int
}

type pathView struct {
	filename string
	stem     string
	// dirs are the enclosing folder names, nearest first.
	dirs []string
}

func (p pathView) parent() string {
	if len(p.dirs) == 0 {
		return ""
	}
	return p.dirs[0]
}

func newPathView(in Input) pathView {
	filename := filepath.Base(in.Path)
	return pathView{
		filename: filename,
		stem:     strings.TrimSuffix(filename, filepath.Ext(filename)),
		dirs:     ancestors(in.Path, in.Root),
	}
}

// Classify derives category, show name, season and episode from a path.
func Classify(in Input) media.Classification {
	view := newPathView(in)

	for _, dir := range view.dirs {
		if isExtrasName(dir) {
			return media.Classification{
				Category: media.CategoryExtra,
				ShowName: extrasShowName(view.dirs),
			}
		}
	}

	episode := matchEpisode(view.filename)
	episodeOnly := matchEpisodeOnly(view.filename)

	category := media.CategoryMovie
	switch {
	case episode.ok || episodeOnly.ok:
		category = media.CategoryShow
	case isExtrasName(view.stem):
		category = media.CategoryExtra
		for _, dir := range view.dirs {
			if isSeasonFolder(dir) {
				category = media.CategoryShow
				break
			}
		}
		if category == media.CategoryExtra {
			return media.Classification{
				Category: media.CategoryExtra,
				ShowName: extrasShowName(view.dirs),
			}
		}
	}

	parent := view.parent()
	if !episode.ok && !episodeOnly.ok && singleFileMovie(view, in.SiblingMedia) {
		return media.Classification{Category: media.CategoryMovie}
	}

	for i, dir := range view.dirs {
		if isSpecialsName(dir) {
			result := media.Classification{
				Category: media.CategoryShow,
				Season:   media.IntPtr(0),
				ShowName: ancestorShowName(view.dirs[i+1:]),
			}
			if result.ShowName == "" {
				result.ShowName = filenameShowName(view.filename, len(view.filename))
			}
			if episode.ok {
				result.Episode = media.IntPtr(episode.episode)
			} else if episodeOnly.ok {
				result.Episode = media.IntPtr(episodeOnly.episode)
			}
			return result
		}
	}

	if season, ok := seasonFromFolder(parent); ok {
		result := media.Classification{
			Category: media.CategoryShow,
			Season:   media.IntPtr(season),
			ShowName: seasonFolderShowName(parent),
		}
		if result.ShowName == "" {
			result.ShowName = ancestorShowName(view.dirs[1:])
		}
		if result.ShowName == "" {
			result.ShowName = filenameShowName(view.filename, len(view.filename))
		}
		if episode.ok {
			result.Episode = media.IntPtr(episode.episode)
		} else if episodeOnly.ok {
			result.Episode = media.IntPtr(episodeOnly.episode)
		}
		return result
	}

	if episode.ok {
		return media.Classification{
			Category: media.CategoryShow,
			ShowName: episodeShowName(view, episode.start),
			Season:   media.IntPtr(episode.season),
			Episode:  media.IntPtr(episode.episode),
		}
	}
	if episodeOnly.ok {
		return media.Classification{
			Category: media.CategoryShow,
			ShowName: episodeShowName(view, episodeOnly.start),
			Season:   media.IntPtr(1),
			Episode:  media.IntPtr(episodeOnly.episode),
		}
	}

	if category == media.CategoryShow {
		return media.Classification{Category: media.CategoryShow, ShowName: ancestorShowName(view.dirs)}
	}
	return media.Classification{Category: media.CategoryMovie}
}

// Recheck applies the inexpensive corrections used when a classification comes
// back from the analysis cache: a movie inside a Shorts or Specials folder
// becomes a season 0 episode, and a show or extra that is the only file in a
// folder named after it becomes a movie.
func Recheck(current media.Classification, in Input) media.Classification {
	view := newPathView(in)
	parent := view.parent()
	if parent == "" {
		return current
	}

	switch current.Category {
	case media.CategoryMovie:
		if !isSpecialsName(parent) || singleFileMovie(view, in.SiblingMedia) {
			return current
		}
		result := media.Classification{Category: media.CategoryShow, Season: media.IntPtr(0)}
		if len(view.dirs) > 1 {
			if name := CleanShowName(view.dirs[1]); len(name) > 1 && !isGeneric(name) {
				result.ShowName = name
			}
		}
		return result
	case media.CategoryShow, media.CategoryExtra:
		if in.SiblingMedia != 1 {
			return current
		}
		parentClean := fold(CleanShowName(parent))
		stemClean := fold(CleanShowName(view.stem))
		if parentClean != "" && strings.Contains(stemClean, parentClean) {
			return media.Classification{Category: media.CategoryMovie}
		}
	}
	return current
}

// singleFileMovie reports whether the file is alone in a folder named after it,
// the usual "Title (Year)/Title (Year).mkv" layout.
func singleFileMovie(view pathView, siblings int) bool {
	parent := view.parent()
	if siblings > 1 || parent == "" || isSeasonFolder(parent) || isExtrasName(parent) {
		return false
	}
	parentClean := fold(CleanShowName(parent))
	stemClean := fold(spacify(view.stem))
	if parentClean == "" || stemClean == "" {
		return false
	}
	return strings.Contains(stemClean, parentClean) || strings.Contains(parentClean, stemClean)
}

func ancestors(path, root string) []string {
	dir := filepath.Dir(filepath.Clean(path))
	root = filepath.Clean(root)

	var dirs []string
	if root != "" && root != "." {
		if rel, err := filepath.Rel(root, dir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if rel != "." {
				parts := strings.Split(rel, string(filepath.Separator))
				for i := len(parts) - 1; i >= 0; i-- {
					dirs = append(dirs, parts[i])
				}
			}
			if name := filepath.Base(root); validDirName(name) {
				dirs = append(dirs, name)
			}
			return dirs
		}
	}

	for {
		name := filepath.Base(dir)
		if !validDirName(name) {
			return dirs
		}
		dirs = append(dirs, name)
		next := filepath.Dir(dir)
		if next == dir {
			return dirs
		}
		dir = next
	}
}

func validDirName(name string) bool {
	return name != "" && name != "." && name != string(filepath.Separator) && !strings.HasSuffix(name, ":"+string(filepath.Separator))
}

func seasonFromFolder(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if m := seasonStart.FindStringSubmatch(name); m != nil {
		return atoi(m[1]), true
	}
	if m := seasonEnd.FindStringSubmatch(name); m != nil {
		return atoi(m[1]), true
	}
	return 0, false
}

func seasonFolderShowName(parent string) string {
	name := seasonEnd.ReplaceAllString(parent, "")
	name = seasonStart.ReplaceAllString(strings.TrimSpace(name), "")
	name = seasonAnywhere.ReplaceAllString(name, "")
	name = CleanShowName(name)
	if len(name) > 1 && !isGeneric(name) {
		return name
	}
	return ""
}

// ancestorShowName returns the first usable show name among dirs, skipping
// season, Specials/Shorts and generic library folders.
func ancestorShowName(dirs []string) string {
	for i, dir := range dirs {
		if i >= maxAncestorDepth {
			break
		}
		if isSpecialsName(dir) || isSeasonFolder(dir) || isGeneric(dir) {
			continue
		}
		if name := CleanShowName(dir); len(name) > 1 && !isGeneric(name) {
			return name
		}
	}
	return ""
}

func episodeShowName(view pathView, matchStart int) string {
	if parent := view.parent(); parent != "" && !isSeasonFolder(parent) && !isSpecialsName(parent) {
		name := CleanShowName(seasonAnywhere.ReplaceAllString(parent, ""))
		if len(name) > 1 && !isGeneric(name) {
			return name
		}
	}
	if len(view.dirs) > 1 {
		if name := ancestorShowName(view.dirs[1:]); name != "" {
			return name
		}
	}
	if name := filenameShowName(view.filename, matchStart); name != "" {
		return name
	}
	return "Unknown"
}

func filenameShowName(filename string, end int) string {
	if end > len(filename) {
		end = len(filename)
	}
	prefix := filename[:end]
	if end == len(filename) {
		prefix = strings.TrimSuffix(prefix, filepath.Ext(prefix))
		if idx := strings.Index(prefix, "."); idx > 0 {
			prefix = prefix[:idx]
		}
	}
	return CleanShowName(prefix)
}

// extrasShowName walks up from the nearest extras folder, or from the parent
// when the extra was recognised by filename, to find the title it belongs to.
func extrasShowName(dirs []string) string {
	start := 0
	for i, dir := range dirs {
		if extrasLike.MatchString(spacify(dir)) {
			start = i + 1
			break
		}
	}
	for _, dir := range dirs[start:] {
		spaced := spacify(dir)
		if isSeasonFolder(dir) || extrasLike.MatchString(spaced) || releaseTokens.MatchString(spaced) || isGeneric(spaced) {
			continue
		}
		name := yearToken.ReplaceAllString(dir, "")
		name = spacify(name)
		if extrasLike.MatchString(name) {
			continue
		}
		if len(name) > 1 {
			return name
		}
	}
	return ""
}
