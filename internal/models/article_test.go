package models

import (
	"reflect"
	"testing"
)

func TestAllowedActions(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		role     string
		isAuthor bool
		want     []ArticleAction
	}{
		{"автор черновика", StatusDraft, RoleUser, true, []ArticleAction{ActionEdit, ActionSubmit}},
		{"чужой черновик", StatusDraft, RoleUser, false, nil},
		{"админ на модерации", StatusSubmitted, RoleAdmin, false, []ArticleAction{ActionApprove, ActionReject}},
		{"автор на модерации", StatusSubmitted, RoleUser, true, nil},
		{"опубликованная", StatusPublished, RoleUser, false, []ArticleAction{ActionLike}},
		{"отклонённая", StatusRejected, RoleAdmin, true, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := AllowedActions(c.status, c.role, c.isAuthor)
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("AllowedActions(%q, %q, %v) = %v, ожидалось %v", c.status, c.role, c.isAuthor, got, c.want)
			}
		})
	}
}

func TestTrendingScore(t *testing.T) {
	a := Article{LikesCount: 10, CommentsCount: 5, ViewsCount: 100}
	// 10*3 + 5*2 + 100*0.1
	if got := a.TrendingScore(); got != 50.0 {
		t.Fatalf("TrendingScore = %v, ожидалось 50.0", got)
	}

	empty := Article{}
	if got := empty.TrendingScore(); got != 0 {
		t.Fatalf("пустая статья должна давать 0, получили %v", got)
	}
}
