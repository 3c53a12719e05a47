package session

// Machine is the session state machine. It has no clock and no goroutines:
// the caller drives it with Tick and Ingest and must not call it
// concurrently. Every operation returns false when it did not apply.
type Machine struct {
	threshold ThresholdProvider
	state     State
}

func NewMachine(threshold ThresholdProvider) *Machine {
	if threshold == nil {
		panic("Machine: threshold cannot be nil")
	}
	return &Machine{threshold: threshold}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state.clone()
}

func (m *Machine) Phase() Phase {
	return m.state.Phase()
}

// Start begins a new session in the paused phase. It is rejected when
// blocks is empty or a session is already active. Leading blocks without
// duration are archived at once; if every block is empty the session
// finishes immediately.
func (m *Machine) Start(title, sport string, blocks []WorkoutBlock) bool {
	if len(blocks) == 0 || m.state.IsActive {
		return false
	}

	m.state = State{
		Title:                 title,
		SportType:             sport,
		CurrentBlockIndex:     0,
		RemainingBlockSeconds: max(0, blocks[0].DurationSeconds),
		IsActive:              true,
		IsPaused:              true,
		Blocks:                append([]WorkoutBlock(nil), blocks...),
	}
	if blocks[0].DurationSeconds <= 0 {
		m.advance()
	}
	return true
}

func (m *Machine) Resume() bool {
	if !m.state.IsActive || !m.state.IsPaused {
		return false
	}
	m.state.IsPaused = false
	return true
}

func (m *Machine) Pause() bool {
	if !m.state.IsActive || m.state.IsPaused {
		return false
	}
	m.state.IsPaused = true
	return true
}

// Tick advances the clock by one second while running. When the current
// block runs out it is archived and the next block begins; after the last
// block the session stops and the summary is built.
func (m *Machine) Tick() bool {
	if m.state.Phase() != PhaseRunning {
		return false
	}

	m.state.RemainingBlockSeconds--
	m.state.ElapsedTotalSeconds++
	if m.state.RemainingBlockSeconds <= 0 {
		m.state.RemainingBlockSeconds = 0
		m.advance()
	}
	return true
}

// Skip archives the current block with the time spent so far and moves on
// exactly as if it had expired.
func (m *Machine) Skip() bool {
	if !m.state.IsActive {
		return false
	}
	m.advance()
	return true
}

// Stop archives the current partial block and finishes the session.
func (m *Machine) Stop() bool {
	if !m.state.IsActive {
		return false
	}
	m.archiveCurrentBlock()
	m.finish()
	return true
}

// Discard ends the session without a summary.
func (m *Machine) Discard() bool {
	if !m.state.IsActive {
		return false
	}
	m.state.IsActive = false
	m.state.IsPaused = false
	m.state.Discarded = true
	return true
}

// Ingest appends a sample and recomputes the session and block averages.
// Samples are only accepted while running.
func (m *Machine) Ingest(sample MetricSample) bool {
	if m.state.Phase() != PhaseRunning {
		return false
	}

	m.state.History = append(m.state.History, sample)
	m.state.Averages = averageOf(m.state.History)

	block := m.state.Blocks[m.state.CurrentBlockIndex]
	window := max(1, block.DurationSeconds-m.state.RemainingBlockSeconds)
	window = min(window, len(m.state.History))
	m.state.CurrentBlockAverages = averageOf(m.state.History[len(m.state.History)-window:])
	return true
}

func (m *Machine) advance() {
	m.archiveCurrentBlock()

	next := m.state.CurrentBlockIndex + 1
	if next >= len(m.state.Blocks) {
		m.state.CurrentBlockIndex = len(m.state.Blocks)
		m.finish()
		return
	}

	m.state.CurrentBlockIndex = next
	m.state.RemainingBlockSeconds = max(0, m.state.Blocks[next].DurationSeconds)
	m.state.CurrentBlockAverages = Averages{}

	// a block without duration never spends a tick
	if m.state.Blocks[next].DurationSeconds <= 0 {
		m.advance()
	}
}

func (m *Machine) archiveCurrentBlock() {
	block := m.state.Blocks[m.state.CurrentBlockIndex]
	m.state.BlockSummaries = append(m.state.BlockSummaries, BlockSummary{
		Label:           block.Label,
		DurationSeconds: max(0, block.DurationSeconds-m.state.RemainingBlockSeconds),
		TargetPower:     TargetPower(block, m.threshold.FTP()),
		ActualPower:     m.state.CurrentBlockAverages.Power,
		ActualCadence:   m.state.CurrentBlockAverages.Cadence,
		ActualHR:        m.state.CurrentBlockAverages.HeartRate,
		Type:            block.Type,
	})
}

func (m *Machine) finish() {
	m.state.IsActive = false
	m.state.IsPaused = false
	m.state.FinalSummary = &Summary{
		Title:          m.state.Title,
		SportType:      m.state.SportType,
		TotalDuration:  m.state.ElapsedTotalSeconds,
		AvgPower:       m.state.Averages.Power,
		AvgHR:          m.state.Averages.HeartRate,
		AvgCadence:     m.state.Averages.Cadence,
		AvgSpeed:       m.state.Averages.Speed,
		BlockSummaries: append([]BlockSummary{}, m.state.BlockSummaries...),
		History:        append([]MetricSample(nil), m.state.History...),
	}
}

func averageOf(samples []MetricSample) Averages {
	if len(samples) == 0 {
		return Averages{}
	}

	var power, cadence, speed, hr float64
	hrCount := 0
	for _, s := range samples {
		power += float64(s.Power)
		cadence += s.Cadence
		speed += s.Speed
		if s.HeartRate != nil {
			hr += float64(*s.HeartRate)
			hrCount++
		}
	}

	n := float64(len(samples))
	avg := Averages{
		Power:   roundInt(power / n),
		Cadence: roundInt(cadence / n),
		Speed:   roundOneDecimal(speed / n),
	}
	if hrCount > 0 {
		avg.HeartRate = roundInt(hr / float64(hrCount))
	}
	return avg
}
