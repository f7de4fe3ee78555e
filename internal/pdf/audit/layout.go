package audit

// Pagination constants of the two audit trail layouts
const (
	SignersPerPage = 4
	FirstPageRows  = 32
	RowsPerPage    = 36
)

// PageLayout splits signer indexes into pages, breaking after every
// SignersPerPage-th signer. A trace without signers still has one page for
// the sender block.
func PageLayout(signers int) [][]int {
	pages := [][]int{{}}
	for i := 0; i < signers; i++ {
		last := len(pages) - 1
		pages[last] = append(pages[last], i)
		if i%SignersPerPage == SignersPerPage-1 && i < signers-1 {
			pages = append(pages, []int{})
		}
	}
	return pages
}

// FollowUpPages returns how many plain pages follow the first page of a row
// trace with n rows
func FollowUpPages(n int) int {
	if n <= FirstPageRows {
		return 0
	}
	return (n - FirstPageRows + RowsPerPage - 1) / RowsPerPage
}

// RowPages splits rows into the styled first page and the follow-up pages
func RowPages(rows []string) [][]string {
	first := min(len(rows), FirstPageRows)
	pages := [][]string{rows[:first]}
	rest := rows[first:]
	for p := 0; p < FollowUpPages(len(rows)); p++ {
		n := min(len(rest), RowsPerPage)
		pages = append(pages, rest[:n])
		rest = rest[n:]
	}
	return pages
}
