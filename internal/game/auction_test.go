package game

import "testing"

func TestMinimumBid(t *testing.T) {
	open := &auctionRow{StartingPrice: 50, CurrentPrice: 50}
	if got := minimumBid(open); got != 51 {
		t.Fatalf("opening bid minimum = %d, want 51", got)
	}
	bidder := int64(7)
	contested := &auctionRow{StartingPrice: 50, CurrentPrice: 80, BidderID: &bidder}
	if got := minimumBid(contested); got != 81 {
		t.Fatalf("contested minimum = %d, want current+1 = 81", got)
	}
}
