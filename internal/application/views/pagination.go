package views

import "github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"

// MergePages combines the live window with older pages. A post present in
// both keeps its live copy. The result is newest first.
func MergePages(live, older []edu.Post) []edu.Post {
	seen := make(map[string]bool, len(live)+len(older))
	out := make([]edu.Post, 0, len(live)+len(older))
	for _, pages := range [][]edu.Post{live, older} {
		for _, p := range pages {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	edu.SortPosts(out)
	return out
}
