package sqlinline

const QEnsureCreativeSchema = `--sql 0b7d2f4e-91c3-4a8e-b5d6-2f0c8e1a7b34
create table if not exists creative_assets (
  id uuid primary key,
  user_id text not null default '',
  kind text not null,
  storage_key text not null,
  mime text not null,
  bytes bigint not null,
  width int not null,
  height int not null,
  created_at timestamptz not null default now()
);
create table if not exists creative_renders (
  render_id text not null,
  format text not null,
  canvas_id text not null,
  user_id text not null default '',
  storage_key text not null,
  size_bytes int not null,
  checksum text not null,
  audit_key text not null default '',
  passed boolean not null,
  created_at timestamptz not null default now(),
  primary key (render_id, format)
);
create index if not exists creative_renders_canvas_idx on creative_renders (canvas_id, created_at desc);
create table if not exists canvas_sessions (
  canvas_id text primary key,
  user_id text not null default '',
  format text not null,
  payload jsonb not null,
  updated_at timestamptz not null default now()
);
`

const QInsertCreativeAsset = `--sql 5c1e8a90-3d7b-4f26-9e41-a8b2c6d0f713
insert into creative_assets(id, user_id, kind, storage_key, mime, bytes, width, height, created_at)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
on conflict (id) do nothing;
`

const QInsertCreativeRender = `--sql 9a4f6c21-7e0d-4b8a-a3c5-1d9e2f7b6c08
insert into creative_renders(render_id, format, canvas_id, user_id, storage_key, size_bytes, checksum, audit_key, passed, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
on conflict (render_id, format) do nothing;
`

const QUpsertCanvasSession = `--sql e2b7c914-6a0f-4d3e-8c51-7f4a9b2d0e66
insert into canvas_sessions(canvas_id, user_id, format, payload, updated_at)
values ($1, $2, $3, $4::jsonb, now())
on conflict (canvas_id) do update
set user_id = excluded.user_id,
    format = excluded.format,
    payload = excluded.payload,
    updated_at = now();
`

const QSelectRendersByCanvas = `--sql 3f8d1b6a-c2e4-4a97-b0d8-6e5c9a1f2b47
select render_id, format, canvas_id, user_id, storage_key, size_bytes, checksum, audit_key, passed, created_at
from creative_renders
where canvas_id = $1
order by created_at desc, format asc
limit $2::int;
`
