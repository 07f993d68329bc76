package game

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Particle - одна искра вспышки
type Particle struct {
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
}

// ParticleBurst - короткоживущая вспышка на месте собранного кольца
type ParticleBurst struct {
	ID        string        `json:"id"`
	RingID    string        `json:"ring_id"`
	Origin    mgl64.Vec3    `json:"origin"`
	Particles []Particle    `json:"particles"`
	StartedAt time.Time     `json:"started_at"`
	Lifetime  time.Duration `json:"lifetime"`

	task TaskHandle
}

const particleDrag = 0.95

func newParticleBurst(id, ringID string, origin mgl64.Vec3, count int, speed float64, rng *rand.Rand, now time.Time, lifetime time.Duration) *ParticleBurst {
	burst := &ParticleBurst{
		ID:        id,
		RingID:    ringID,
		Origin:    origin,
		Particles: make([]Particle, count),
		StartedAt: now,
		Lifetime:  lifetime,
	}

	for i := range burst.Particles {
		// Случайное направление на единичной сфере
		theta := rng.Float64() * 2 * math.Pi
		cosPhi := 2*rng.Float64() - 1
		sinPhi := math.Sqrt(1 - cosPhi*cosPhi)
		dir := mgl64.Vec3{sinPhi * math.Cos(theta), cosPhi, sinPhi * math.Sin(theta)}

		burst.Particles[i] = Particle{
			Position: origin,
			Velocity: dir.Mul(speed * (0.5 + rng.Float64()*0.5)),
		}
	}
	return burst
}

// step сдвигает искры на один тик
func (b *ParticleBurst) step() {
	for i := range b.Particles {
		p := &b.Particles[i]
		p.Position = p.Position.Add(p.Velocity)
		p.Velocity = p.Velocity.Mul(particleDrag)
	}
}

// Age возвращает возраст вспышки
func (b *ParticleBurst) Age(now time.Time) time.Duration {
	return now.Sub(b.StartedAt)
}

// snapshot возвращает копию вспышки без внутренних полей
func (b *ParticleBurst) snapshot() ParticleBurst {
	particles := make([]Particle, len(b.Particles))
	copy(particles, b.Particles)
	return ParticleBurst{
		ID:        b.ID,
		RingID:    b.RingID,
		Origin:    b.Origin,
		Particles: particles,
		StartedAt: b.StartedAt,
		Lifetime:  b.Lifetime,
	}
}
