package tonnel

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// flexFloat decodes a JSON number that the API may serialize as a number, a
// quoted string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt64 decodes a JSON integer that may arrive as a number or a string.
type flexInt64 int64

func (i *flexInt64) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = flexInt64(f)
	return nil
}

// apiBid is one bid-history entry.
type apiBid struct {
	Amount flexFloat `json:"amount"`
}

// apiAuction is the auction sub-object of a gift.
type apiAuction struct {
	BidHistory     []apiBid  `json:"bidHistory"`
	StartingBid    flexFloat `json:"startingBid"`
	AuctionEndTime string    `json:"auctionEndTime"`
}

// apiGift is one listing as returned by pageGifts.
type apiGift struct {
	GiftID   flexInt64  `json:"gift_id"`
	Name     string     `json:"name"`
	Model    string     `json:"model"`
	Backdrop string     `json:"backdrop"`
	Auction  apiAuction `json:"auction"`
	GiftNum  flexInt64  `json:"gift_num"`
}

// toListing maps an API gift to the domain shape. The current bid is the most
// recent bid-history entry when one exists, otherwise the starting bid.
func (g apiGift) toListing() domain.Listing {
	bid := float64(g.Auction.StartingBid)
	if n := len(g.Auction.BidHistory); n > 0 {
		bid = float64(g.Auction.BidHistory[n-1].Amount)
	}

	num := int64(g.GiftNum)
	if num == 0 {
		num = int64(g.GiftID)
	}

	return domain.Listing{
		ID:            int64(g.GiftID),
		Name:          g.Name,
		Model:         g.Model,
		Backdrop:      g.Backdrop,
		CurrentBid:    bid,
		EndTime:       formatEndTime(g.Auction.AuctionEndTime),
		DisplayNumber: num,
	}
}

// formatEndTime trims an ISO timestamp to second precision and replaces the
// date/time separator for display ("2026-01-02T15:04:05.000Z" becomes
// "2026-01-02 15:04:05").
func formatEndTime(raw string) string {
	if raw == "" {
		return "N/A"
	}
	if len(raw) > 19 {
		raw = raw[:19]
	}
	return strings.Replace(raw, "T", " ", 1)
}

// decodeAuctions accepts both response shapes pageGifts is known to produce: a
// bare listing array, or an object wrapping it in an "auctions" field.
func decodeAuctions(body []byte) ([]apiGift, error) {
	var gifts []apiGift
	if err := json.Unmarshal(body, &gifts); err == nil {
		return gifts, nil
	}

	var wrapped struct {
		Auctions []apiGift `json:"auctions"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, domain.ErrBadResponse
	}
	return wrapped.Auctions, nil
}
