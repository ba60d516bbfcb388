package draft

// passPack advances the turn after the human's card has been removed: every
// bot picks once, then either the round closes or the active packs rotate.
//
// The rotation direction is a pure function of the remaining card count in
// seat 0's pack, measured after its card was removed and before rotation:
// even passes left, odd passes right. Because every seat depletes its pack
// in lockstep, this alternates direction per round without tracking round
// parity.
func (s *Session) passPack() {
	s.pickNumber++
	s.runBotPicks()

	if s.allActivePacksEmpty() {
		s.packNumber++
		s.pickNumber = 1
		for i := range s.seats {
			s.seats[i] = s.seats[i][1:]
		}
		return
	}

	if len(s.seats[0][0])%2 == 0 {
		s.rotateLeft()
	} else {
		s.rotateRight()
	}
}

func (s *Session) allActivePacksEmpty() bool {
	for _, queue := range s.seats {
		if len(queue[0]) != 0 {
			return false
		}
	}
	return true
}

// rotateLeft hands each seat's active pack to the seat with the next-lower
// index, wrapping.
func (s *Session) rotateLeft() {
	n := len(s.seats)
	first := s.seats[0][0]
	for i := 0; i < n-1; i++ {
		s.seats[i][0] = s.seats[i+1][0]
	}
	s.seats[n-1][0] = first
}

// rotateRight hands each seat's active pack to the seat with the next-higher
// index, wrapping.
func (s *Session) rotateRight() {
	n := len(s.seats)
	last := s.seats[n-1][0]
	for i := n - 1; i > 0; i-- {
		s.seats[i][0] = s.seats[i-1][0]
	}
	s.seats[0][0] = last
}
