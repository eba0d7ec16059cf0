package pg

// Schema is the relational layout of the booking core. Migrations are
// applied by ops tooling; tests use this constant directly.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY,
	experience_name TEXT NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	booking_closes_at TIMESTAMPTZ NOT NULL,
	max_seats_total INT NOT NULL,
	max_per_guide INT NOT NULL,
	adult_price_cents BIGINT NOT NULL,
	minor_price_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	cancelled BOOLEAN NOT NULL DEFAULT FALSE,
	CHECK (booking_closes_at < start_at)
);

CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS guides (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	languages TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS reservations (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id),
	customer_id UUID NOT NULL REFERENCES customers(id),
	status TEXT NOT NULL CHECK (status IN ('HOLD','WAITING','CONFIRMED','EXPIRED','CANCELLED')),
	hold_expires_at TIMESTAMPTZ,
	adults_count INT NOT NULL,
	minors_count INT NOT NULL,
	total_pax INT NOT NULL CHECK (total_pax = adults_count + minors_count),
	guide_user_id UUID REFERENCES guides(id),
	tour_language TEXT,
	created_email_sent_at TIMESTAMPTZ,
	confirmed_email_sent_at TIMESTAMPTZ,
	availability_email_sent_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, customer_id)
);

CREATE INDEX IF NOT EXISTS reservations_session_status_idx ON reservations (session_id, status);
CREATE INDEX IF NOT EXISTS reservations_hold_expiry_idx ON reservations (hold_expires_at) WHERE status = 'HOLD';

CREATE TABLE IF NOT EXISTS payments (
	reservation_id UUID PRIMARY KEY REFERENCES reservations(id),
	status TEXT NOT NULL CHECK (status IN ('NOT_REQUIRED','REQUIRES_PAYMENT','PENDING','SUCCEEDED','FAILED','CANCELED','REFUNDED')),
	amount_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	checkout_session_id TEXT UNIQUE,
	charge_id TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
