package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// RupeeIncentive is the rupee payout block embedded in leaderboard rows.
// Points adjustments land in total_points_final; rupee adjustments land here
// and nowhere else.
type RupeeIncentive struct {
	MFIncentive    float64 `json:"mf_incentive"`
	MFPenalty      float64 `json:"mf_penalty"`
	MFQtrBonus     float64 `json:"mf_qtr_bonus,omitempty"`
	MFAnnualBonus  float64 `json:"mf_annual_bonus,omitempty"`
	InsPayout      float64 `json:"ins_payout"`
	AdjustmentsSum float64 `json:"adjustments"`
	Total          float64 `json:"total"`
}

// RankedRow is one leaderboard entry: the public row plus rank and the
// rupee incentive block.
type RankedRow struct {
	Rank int `json:"rank"`
	model.PublicRow
	RupeeIncentive RupeeIncentive `json:"rupee_incentive"`
}

// Breakdown is the full per-metric detail behind one public row.
type Breakdown struct {
	Public    *model.PublicRow    `json:"public"`
	Lumpsum   *model.LumpsumRow   `json:"lumpsum,omitempty"`
	SIP       *model.SIPRow       `json:"sip,omitempty"`
	Insurance *model.InsuranceRow `json:"insurance,omitempty"`
	Referral  *model.ReferralRow  `json:"referral,omitempty"`
}

// incentiveFor composes the rupee block from the metric rows. Decimal
// arithmetic keeps the displayed total free of float drift.
func incentiveFor(row model.PublicRow, ls *model.LumpsumRow, ins *model.InsuranceRow) RupeeIncentive {
	var ri RupeeIncentive
	total := decimal.Zero

	if ls != nil {
		ri.MFIncentive = ls.FinalIncentive
		ri.MFPenalty = ls.PenaltyRupees
		ri.MFQtrBonus = ls.QtrBonus
		ri.MFAnnualBonus = ls.AnnualBonus
		total = total.Add(decimal.NewFromFloat(ls.FinalIncentive)).
			Sub(decimal.NewFromFloat(ls.PenaltyRupees)).
			Add(decimal.NewFromFloat(ls.QtrBonus)).
			Add(decimal.NewFromFloat(ls.AnnualBonus))
	}
	if ins != nil {
		ri.InsPayout = ins.PayoutAmount
		total = total.Add(decimal.NewFromFloat(ins.PayoutAmount))
	}
	adj := decimal.Zero
	for _, a := range row.Adjustments {
		if a.Type == model.AdjustRupees && a.Status == model.AdjustApproved {
			adj = adj.Add(decimal.NewFromFloat(a.Value))
		}
	}
	ri.AdjustmentsSum, _ = adj.Round(2).Float64()
	ri.Total, _ = total.Add(adj).Round(2).Float64()
	return ri
}

// rank sorts rows by final points descending (employee id breaks ties) and
// attaches rupee incentive blocks from the month's metric rows.
func rank(rows []model.PublicRow, lumpsum map[string]model.LumpsumRow, insurance map[string]model.InsuranceRow) []RankedRow {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPointsFinal != rows[j].TotalPointsFinal {
			return rows[i].TotalPointsFinal > rows[j].TotalPointsFinal
		}
		return rows[i].EmployeeID < rows[j].EmployeeID
	})

	out := make([]RankedRow, len(rows))
	for i, row := range rows {
		var ls *model.LumpsumRow
		if v, ok := lumpsum[row.EmployeeID]; ok {
			ls = &v
		}
		var ins *model.InsuranceRow
		if v, ok := insurance[row.EmployeeID]; ok {
			ins = &v
		}
		out[i] = RankedRow{
			Rank:           i + 1,
			PublicRow:      row,
			RupeeIncentive: incentiveFor(row, ls, ins),
		}
	}
	return out
}

func (s *Server) monthRows(r *http.Request, month model.Month) ([]model.PublicRow, map[string]model.LumpsumRow, map[string]model.InsuranceRow, error) {
	ctx := r.Context()
	rows, err := s.Rows.PublicMonth(ctx, month)
	if err != nil {
		return nil, nil, nil, err
	}
	lsRows, err := s.Rows.LumpsumMonth(ctx, month)
	if err != nil {
		return nil, nil, nil, err
	}
	insRows, err := s.Rows.InsuranceMonth(ctx, month)
	if err != nil {
		return nil, nil, nil, err
	}
	ls := make(map[string]model.LumpsumRow, len(lsRows))
	for _, v := range lsRows {
		ls[v.EmployeeID] = v
	}
	ins := make(map[string]model.InsuranceRow, len(insRows))
	for _, v := range insRows {
		ins[v.EmployeeID] = v
	}
	return rows, ls, ins, nil
}

// handleLeaderboard serves GET /leaderboard?month=YYYY-MM&view={MTD|YTD}.
// YTD sums public points across the financial year to date; the rupee block
// always reflects the requested month.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "MTD"
	}
	if view != "MTD" && view != "YTD" {
		writeError(w, http.StatusBadRequest, "view must be MTD or YTD")
		return
	}

	rows, ls, ins, err := s.monthRows(r, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if view == "YTD" {
		rows, err = s.ytdRows(r, rows, month)
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month": month.String(),
		"view":  view,
		"rows":  rank(rows, ls, ins),
	})
}

// ytdRows folds earlier FY months' points into the requested month's rows.
func (s *Server) ytdRows(r *http.Request, rows []model.PublicRow, month model.Month) ([]model.PublicRow, error) {
	byEmp := make(map[string]int, len(rows))
	for i, row := range rows {
		byEmp[row.EmployeeID] = i
	}
	for m := month.FYStart(model.FYApril); m.Before(month); m = m.Next() {
		prior, err := s.Rows.PublicMonth(r.Context(), m)
		if err != nil {
			return nil, err
		}
		for _, p := range prior {
			i, ok := byEmp[p.EmployeeID]
			if !ok {
				rows = append(rows, p)
				byEmp[p.EmployeeID] = len(rows) - 1
				continue
			}
			rows[i].TotalPointsPublic += p.TotalPointsPublic
			rows[i].TotalPointsFinal += p.TotalPointsFinal
			rows[i].MFPoints += p.MFPoints
			rows[i].MFSIPPoints += p.MFSIPPoints
			rows[i].MFLumpsumPoints += p.MFLumpsumPoints
			rows[i].InsPoints += p.InsPoints
			rows[i].RefPoints += p.RefPoints
		}
	}
	return rows, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing identity header")
		return
	}
	s.serveRow(w, r, id)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.serveRow(w, r, chi.URLParam(r, "id"))
}

func (s *Server) serveRow(w http.ResponseWriter, r *http.Request, employeeID string) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	row, err := s.Rows.PublicRow(r.Context(), employeeID, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "no leaderboard row")
		return
	}
	ls, err := s.Rows.LumpsumRow(r.Context(), employeeID, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	ins, err := s.Rows.InsuranceRow(r.Context(), employeeID, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RankedRow{
		PublicRow:      *row,
		RupeeIncentive: incentiveFor(*row, ls, ins),
	})
}

func (s *Server) handleMeBreakdown(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing identity header")
		return
	}
	s.serveBreakdown(w, r, id)
}

func (s *Server) handleUserBreakdown(w http.ResponseWriter, r *http.Request) {
	s.serveBreakdown(w, r, chi.URLParam(r, "id"))
}

func (s *Server) serveBreakdown(w http.ResponseWriter, r *http.Request, employeeID string) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	ctx := r.Context()

	pub, err := s.Rows.PublicRow(ctx, employeeID, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if pub == nil {
		writeError(w, http.StatusNotFound, "no leaderboard row")
		return
	}

	b := Breakdown{Public: pub}
	if b.Lumpsum, err = s.Rows.LumpsumRow(ctx, employeeID, month); err != nil {
		writeStoreError(w, err)
		return
	}
	if b.SIP, err = s.Rows.SIPRow(ctx, employeeID, month); err != nil {
		writeStoreError(w, err)
		return
	}
	if b.Insurance, err = s.Rows.InsuranceRow(ctx, employeeID, month); err != nil {
		writeStoreError(w, err)
		return
	}
	refRows, err := s.Rows.ReferralMonth(ctx, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	for i := range refRows {
		if refRows[i].EmployeeID == employeeID {
			b.Referral = &refRows[i]
			break
		}
	}
	writeJSON(w, http.StatusOK, b)
}

// TeamGroup is one aggregated row in the team view.
type TeamGroup struct {
	GroupType   string  `json:"group_type"` // team | manager | unassigned
	GroupKey    string  `json:"group_key"`
	MemberCount int     `json:"member_count"`
	TotalPoints float64 `json:"total_points"`
	AvgPoints   float64 `json:"avg_points"`
}

func (s *Server) handleTeamView(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	rows, err := s.Rows.PublicMonth(r.Context(), month)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	groups := make(map[string]*TeamGroup)
	for _, row := range rows {
		gType, gKey := groupOf(row)
		k := gType + "/" + gKey
		g, ok := groups[k]
		if !ok {
			g = &TeamGroup{GroupType: gType, GroupKey: gKey}
			groups[k] = g
		}
		g.MemberCount++
		g.TotalPoints += row.TotalPointsFinal
	}

	out := make([]TeamGroup, 0, len(groups))
	for _, g := range groups {
		g.AvgPoints = g.TotalPoints / float64(g.MemberCount)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })

	writeJSON(w, http.StatusOK, map[string]any{"month": month.String(), "groups": out})
}

func (s *Server) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	gType := r.URL.Query().Get("group_type")
	gKey := r.URL.Query().Get("group_key")
	if gType != "team" && gType != "manager" && gType != "unassigned" {
		writeError(w, http.StatusBadRequest, "group_type must be team, manager or unassigned")
		return
	}

	rows, ls, ins, err := s.monthRows(r, month)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	members := rows[:0]
	for _, row := range rows {
		t, k := groupOf(row)
		if t == gType && (gType == "unassigned" || k == gKey) {
			members = append(members, row)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":   month.String(),
		"members": rank(members, ls, ins),
	})
}

// handleExport serves the granular per-group export: full public rows with
// audit blocks, grouped under their team keys.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	rows, err := s.Rows.PublicMonth(r.Context(), month)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	groupKey := r.URL.Query().Get("group_key")
	grouped := make(map[string][]model.PublicRow)
	for _, row := range rows {
		_, k := groupOf(row)
		if groupKey != "" && k != groupKey {
			continue
		}
		grouped[k] = append(grouped[k], row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month.String(), "groups": grouped})
}

func groupOf(row model.PublicRow) (groupType, groupKey string) {
	switch {
	case row.TeamID != "":
		return "team", row.TeamID
	case row.ManagerID != "":
		return "manager", row.ManagerID
	default:
		return "unassigned", "unassigned"
	}
}
